package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStore matches every error returned by this package.
	ErrStore = errors.New("store error")
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSchemaVersion is returned by Open for a database written with an
	// incompatible schema.
	ErrSchemaVersion = errors.New("incompatible schema")
)

// opError ties a failed operation to ErrStore while keeping the cause.
type opError struct {
	Op  string
	Err error
}

func (e *opError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *opError) Unwrap() error { return e.Err }

func (e *opError) Is(target error) bool { return target == ErrStore }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{Op: op, Err: err}
}
