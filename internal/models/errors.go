package models

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup miss in storage or an index.
var ErrNotFound = errors.New("not found")

// DataFetchError reports a failure to obtain bars for a ticker from a source.
// Ingestion treats it as per-ticker: one failing ticker never aborts a batch.
type DataFetchError struct {
	Ticker string
	Source string
	Err    error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Ticker, e.Source, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// IndexError reports a vector or keyword index operation failure.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// GenerationError reports a language model call failure.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("generation: %v", e.Err)
	}
	return fmt.Sprintf("generation (%s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
