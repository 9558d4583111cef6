package cachechain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is the miss signal of every level.
	ErrNotFound = errors.New("cachechain: value not present")

	// ErrTransform matches every *TransformError.
	ErrTransform = errors.New("cachechain: transformation failed")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("cachechain: storage failure")

	// ErrRejected is returned when a store refused a write under pressure.
	ErrRejected = errors.New("cachechain: write rejected by store")
)

// TransformError reports a value (or key) that could not be converted.
// Op is "transform", "inverse_transform" or "key_transform".
type TransformError struct {
	Op  string
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("cachechain: %s failed: %v", e.Op, e.Err)
}

func (e *TransformError) Unwrap() error        { return e.Err }
func (e *TransformError) Is(target error) bool { return target == ErrTransform }

// StorageError is a read/write fault surfaced by a leaf level.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cachechain: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// StageError ties a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e StageError) Unwrap() error { return e.Err }

// SetError aggregates the stages that failed a broadcast Set.
// Every stage was attempted regardless of the others.
type SetError struct {
	Key      string
	Failures []StageError
}

func (e *SetError) Error() string {
	switch len(e.Failures) {
	case 0:
		return fmt.Sprintf("set %q: unknown error", e.Key)
	case 1:
		return fmt.Sprintf("set %q failed on %s", e.Key, e.Failures[0].Error())
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("set %q failed on %d stages: %s", e.Key, len(e.Failures), strings.Join(parts, "; "))
}

func (e *SetError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

func transformErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransformError
	if errors.As(err, &te) {
		return err
	}
	return &TransformError{Op: op, Err: err}
}
