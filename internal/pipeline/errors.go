package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRows means nothing survived normalization; prior data is untouched.
	ErrNoRows = errors.New("no valid rows found in file")
	// ErrBusy means another upload holds the pipeline lock.
	ErrBusy = errors.New("another upload is being processed")
	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError rejects a request before any processing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// StageError records the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }
