package errors

import (
	"errors"
	"fmt"
)

// Failure kinds for the evaluation pipeline. Every component classifies its
// failures into one of these so callers can branch with errors.Is.

var (
	// ErrNotFound indicates a required input file is missing
	ErrNotFound = errors.New("file not found")

	// ErrParse indicates malformed tabular input
	ErrParse = errors.New("parse error")

	// ErrIO indicates a local read or write failure
	ErrIO = errors.New("io error")

	// ErrDeserialization indicates a corrupt or incompatible model artifact
	ErrDeserialization = errors.New("model deserialization error")

	// ErrEvaluation indicates a metric computation failure
	ErrEvaluation = errors.New("evaluation error")

	// ErrTrackingService indicates a remote tracking-service failure
	ErrTrackingService = errors.New("tracking service error")

	// ErrMissingCredential indicates the tracking credential is absent
	ErrMissingCredential = errors.New("missing tracking credential")
)

// StageError wraps an error with the pipeline stage it occurred in
type StageError struct {
	Stage string
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the wrapped error
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new stage error
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapKind wraps err so that it matches kind with errors.Is while keeping
// the original cause in the chain
func WrapKind(err error, kind error, message string) error {
	if err == nil {
		return kind
	}
	return fmt.Errorf("%s: %w: %w", message, kind, err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
