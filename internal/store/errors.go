package store

import (
	"errors"
	"fmt"
)

// ErrTaskGone reports that the task an embedding refers to no longer exists,
// typically because it was deleted while its embedding was being computed.
var ErrTaskGone = errors.New("task no longer exists")

// ProvisioningError is a failure to create or verify the embedding schema.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning vector store (%s): %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// OpError is a failed upsert, delete, listing or similarity query.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
