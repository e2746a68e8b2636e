package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrUnknownEntity = errors.New("unknown entity type")
	ErrInvalidConfig = errors.New("invalid config")

	// ErrTimeout is returned when the remote call lost the race against the client-side timer.
	// Its message is fixed so callers can tell it apart from a backend error.
	ErrTimeout = errors.New("request timed out")
	ErrBackend = errors.New("backend error")

	ErrInvalidBackend  = errors.New("invalid backend")
	ErrDataStoreAccess = errors.New("data store read/write error")
)

const EmptyLabelMessage = "Cannot create option with empty label"

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// Message returns the user facing part of an error built with Err: the last line of the
// joined message, which is the formatted template when one was given.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs := joined.Unwrap()
		if len(errs) > 0 {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}
