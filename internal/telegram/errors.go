package telegram

import (
	"errors"
	"fmt"
)

// ErrExternalClient matches every failed platform call.
var ErrExternalClient = errors.New("telegram client error")

// ExternalClientError describes an outbound call rejected by the platform.
type ExternalClientError struct {
	Op  string
	Err error
}

func (e *ExternalClientError) Error() string {
	return fmt.Sprintf("telegram %s: %v", e.Op, e.Err)
}

func (e *ExternalClientError) Unwrap() []error {
	return []error{ErrExternalClient, e.Err}
}

func clientErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalClientError{Op: op, Err: err}
}
