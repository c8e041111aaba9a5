package backend

import "fmt"

// TransportError means the completion service could not be reached or its
// response could not be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to reach completion service: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is a non-success answer from the completion service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion service returned %d: %s", e.StatusCode, e.Message)
}
