package utils

import (
	"fmt"

	"github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// ErrorCode classifies the fatal errors gdev can raise
type ErrorCode int

const (
	// ConfigNotFound tells us a referenced gdev.cfg does not exist
	ConfigNotFound ErrorCode = iota + 1
	// UnrecognizedSection tells us a config file used a section header we don't know
	UnrecognizedSection
	// UnrecognizedConditional tells us a line opened with a predicate we don't know
	UnrecognizedConditional
	// TaintedUpload tells us we refused to push an image built from an unclean tree
	TaintedUpload
	// MissingSeparatorArgs tells us run arguments were given without a preceding `--`
	MissingSeparatorArgs
	// ExternalInvocationFailure tells us docker or git exited non-zero
	ExternalInvocationFailure
)

func (code ErrorCode) String() string {
	switch code {
	case ConfigNotFound:
		return "ConfigNotFound"
	case UnrecognizedSection:
		return "UnrecognizedSection"
	case UnrecognizedConditional:
		return "UnrecognizedConditional"
	case TaintedUpload:
		return "TaintedUpload"
	case MissingSeparatorArgs:
		return "MissingSeparatorArgs"
	case ExternalInvocationFailure:
		return "ExternalInvocationFailure"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(code))
}

// WrapError wraps an error for the sake of showing a stack trace at the top level
// the go-errors package, for some reason, does not return nil when you try to wrap
// a non-error, so we're just doing it here
func WrapError(err error) error {
	if err == nil {
		return err
	}

	return errors.Wrap(err, 0)
}

// ComplexError an error which carries a code so that calling code has an easier job to do
// adapted from https://medium.com/yakka/better-go-error-handling-with-xerrors-1987650e0c79
type ComplexError struct {
	Message string
	Code    ErrorCode
	frame   xerrors.Frame
}

// NewComplexError builds a ComplexError, recording the caller's frame
func NewComplexError(code ErrorCode, format string, args ...interface{}) ComplexError {
	return ComplexError{
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		frame:   xerrors.Caller(1),
	}
}

// FormatError is a function
func (ce ComplexError) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s", ce.Code, ce.Message)
	ce.frame.Format(p)
	return nil
}

// Format is a function
func (ce ComplexError) Format(f fmt.State, c rune) {
	xerrors.FormatError(ce, f, c)
}

func (ce ComplexError) Error() string {
	return fmt.Sprint(ce)
}

// HasErrorCode tells us whether err, or anything it wraps, is a ComplexError
// with the given code
func HasErrorCode(err error, code ErrorCode) bool {
	var originalErr ComplexError
	if xerrors.As(err, &originalErr) {
		return originalErr.Code == code
	}
	return false
}

// ErrorMessage returns the message of the first ComplexError in err's chain,
// falling back to err.Error() for everything else
func ErrorMessage(err error) string {
	var originalErr ComplexError
	if xerrors.As(err, &originalErr) {
		return originalErr.Message
	}
	return err.Error()
}
