package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	// ErrData marks malformed or insufficient input, e.g. a single-class label set.
	ErrData = errors.New("data error")
	// ErrModelNotFound means no trained artifact exists yet.
	ErrModelNotFound = errors.New("no trained model found; train a model first")
	// ErrUpstreamFetch marks an unavailable or non-2xx upstream data source.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrStorage marks a persistence failure for artifacts or records.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned by repositories for missing rows.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("conflict")
)

// OpError ties an error kind to the operation that produced it.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap annotates err with an operation and kind. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Kind returns an error of the given kind with a formatted detail message.
func Kind(op string, kind error, format string, args ...any) error {
	if format == "" {
		return &OpError{Op: op, Kind: kind}
	}
	return &OpError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}
