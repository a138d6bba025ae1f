package tools

import (
	"fmt"

	"github.com/harunnryd/sapa/pkg/errorsx"
)

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

func (e *UnknownToolError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolUnknown }

type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

func (e *DuplicateToolError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolDuplicate }

type MissingArgumentError struct {
	Tool  string
	Param string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing required argument %q", e.Param)
}

func (e *MissingArgumentError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonArgMissing }

type InvalidArgumentError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid arguments: " + e.Reason
}

func (e *InvalidArgumentError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonArgInvalid }
