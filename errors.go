package irmxfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned by every fallible operation in this
// module. Errors form a chain: the sentinel values below are roots, and
// WithMessage/Wrap derive new errors that still match their root via errors.Is.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseError string

const rootError = baseError("")

var ErrAlreadyInProgress = rootError.WithMessage("Operation already in progress")
var ErrFileSystemCorrupted = rootError.WithMessage("Structure needs cleaning")
var ErrInvalidFileSystem = rootError.WithMessage("Wrong medium type")
var ErrIOFailed = rootError.WithMessage("Input/output error")
var ErrIsADirectory = rootError.WithMessage("Is a directory")
var ErrNotADirectory = rootError.WithMessage("Not a directory")
var ErrNotFound = rootError.WithMessage("No such file or directory")
var ErrNotMounted = rootError.WithMessage("Volume is not mounted")

func (e baseError) Error() string {
	return string(e)
}

func (e baseError) WithMessage(message string) DriverError {
	return customError{
		message:       message,
		originalError: e,
	}
}

func (e baseError) Wrap(err error) DriverError {
	return customError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customError) Error() string {
	return e.message
}

func (e customError) WithMessage(message string) DriverError {
	return customError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customError) Wrap(err error) DriverError {
	return customError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customError) Unwrap() error {
	return e.originalError
}
