// Package domain defines core types and errors for the demography extension.
package domain

import "fmt"

// SchemaMismatchError indicates that input files are structurally
// incompatible. It is fatal to a merge run — nothing is written.
type SchemaMismatchError struct {
	Message string
}

func (e *SchemaMismatchError) Error() string { return e.Message }

// ValueParseError classifies a value cell that is neither numeric nor an
// explicit missing-value marker. Rows carrying one are skipped and counted.
type ValueParseError struct {
	Message string
}

func (e *ValueParseError) Error() string { return e.Message }

// MalformedReferenceError classifies a broken row (or a broken header) in
// the country reference file.
type MalformedReferenceError struct {
	Message string
}

func (e *MalformedReferenceError) Error() string { return e.Message }

// ValidationError indicates invalid query parameters. The query is rejected
// before any data access.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a resource (e.g. a country) was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ArtifactNotFoundError indicates the merged artifact does not exist yet,
// i.e. the merge pipeline has never been run. Surfaced to callers as a
// service-unavailable condition.
type ArtifactNotFoundError struct {
	Path string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("demography artifact not found at %q (run the merge pipeline first)", e.Path)
}

// ErrSchemaMismatch creates a SchemaMismatchError with a formatted message.
func ErrSchemaMismatch(format string, args ...interface{}) *SchemaMismatchError {
	return &SchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}

// ErrValueParse creates a ValueParseError with a formatted message.
func ErrValueParse(format string, args ...interface{}) *ValueParseError {
	return &ValueParseError{Message: fmt.Sprintf(format, args...)}
}

// ErrMalformedReference creates a MalformedReferenceError with a formatted message.
func ErrMalformedReference(format string, args ...interface{}) *MalformedReferenceError {
	return &MalformedReferenceError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrArtifactNotFound creates an ArtifactNotFoundError for the given path.
func ErrArtifactNotFound(path string) *ArtifactNotFoundError {
	return &ArtifactNotFoundError{Path: path}
}
