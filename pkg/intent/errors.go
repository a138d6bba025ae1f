package intent

import (
	"fmt"

	"github.com/harunnryd/sapa/pkg/errorsx"
)

// ArgumentParseError reports an argument that was present but malformed.
type ArgumentParseError struct {
	Param  string
	Input  string
	Reason string
}

func (e *ArgumentParseError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("could not read %s: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("could not read %s from %q: %s", e.Param, e.Input, e.Reason)
}

func (e *ArgumentParseError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonArgParse }
