package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/redact"
)

// NetworkError means the remote service could not be reached at all.
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error                   { return e.Err }
func (e *NetworkError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolNetwork }

// HTTPStatusError is a non-2xx answer.
type HTTPStatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.Status, e.Body)
}

func (e *HTTPStatusError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolHTTPStatus }

// ProviderError is a failure reported by the provider in its own payload.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return "provider failure: No details"
	}
	return "provider failure: " + e.Message
}

func (e *ProviderError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolProvider }

// TimeoutError means the poll budget ran out before the job finished.
type TimeoutError struct {
	Attempts int
	Interval time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: no result after %d checks every %s", e.Attempts, e.Interval)
}

func (e *TimeoutError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolTimeout }

// DownloadError is a failed artifact persistence; the tool itself succeeded.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed: %v", e.Err)
}

func (e *DownloadError) Unwrap() error                   { return e.Err }
func (e *DownloadError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonDownload }

type UnboundToolError struct {
	Name string
}

func (e *UnboundToolError) Error() string {
	return fmt.Sprintf("tool %q has no handler", e.Name)
}

func (e *UnboundToolError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolUnbound }

type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Value)
}

func (e *PanicError) ReasonCode() errorsx.ReasonCode { return errorsx.ReasonToolPanic }

// Describe renders err for the person at the other end of the conversation.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var netErr *NetworkError
	var statusErr *HTTPStatusError
	switch {
	case errors.As(err, &netErr):
		return fmt.Sprintf("I'm having trouble connecting to the %s. Please check your internet connection.", netErr.Service)
	case errors.As(err, &statusErr):
		return fmt.Sprintf("the %s answered with HTTP %d", statusErr.Service, statusErr.Status)
	case errors.Is(err, context.DeadlineExceeded):
		return "the request took too long"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	}
	return redact.Secrets(err.Error())
}
