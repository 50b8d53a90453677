package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConfigurationError reports a missing or rejected credential/setting.
// It blocks provider activation.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NetworkError wraps a failed remote call. Timeout is set when the call
// exceeded its deadline rather than failing outright.
type NetworkError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Timeout {
		b.WriteString(": timed out")
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status=%d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DataFormatError reports malformed persisted or imported data.
type DataFormatError struct {
	Source string
	Err    error
}

func (e *DataFormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed data in %s", e.Source)
	}
	return fmt.Sprintf("malformed data in %s: %v", e.Source, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// ValidationError is advisory feedback; it never blocks saving.
type ValidationError struct {
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, strings.Join(e.Problems, "; "))
}

// NewNetworkError classifies err, marking deadline and net timeouts.
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Timeout: isTimeoutCause(err), Err: err}
}

func isTimeoutCause(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// AsNetworkError attempts to unwrap err into a NetworkError.
func AsNetworkError(err error) (*NetworkError, bool) {
	var nErr *NetworkError
	if errors.As(err, &nErr) {
		return nErr, true
	}
	return nil, false
}

// IsTimeout reports whether err is a timed-out remote call.
func IsTimeout(err error) bool {
	if nErr, ok := AsNetworkError(err); ok {
		return nErr.Timeout
	}
	return isTimeoutCause(err)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var cErr *ConfigurationError
	return errors.As(err, &cErr)
}

// IsDataFormat reports whether err is a DataFormatError.
func IsDataFormat(err error) bool {
	var dErr *DataFormatError
	return errors.As(err, &dErr)
}

// AsValidationError attempts to unwrap err into a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
