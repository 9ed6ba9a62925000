package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Row-level error codes accumulated during normalization
const (
	ErrCodeRowBadDate   = "ERR_ROW_BAD_DATE"
	ErrCodeRowBadNumber = "ERR_ROW_BAD_NUMBER"
	ErrCodeRowEmptyKey  = "ERR_ROW_EMPTY_ORDER_ID"
)

// Common file-level errors
var (
	// ErrEmptyFile is returned when the source file is empty
	ErrEmptyFile = errors.New("source file is empty")

	// ErrInvalidEncoding is returned when the file is not valid UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the file has no header row
	ErrMissingHeader = errors.New("file missing header row")
)

// SchemaError marks a file that cannot be ingested at all: unreadable,
// wrong encoding, or missing required columns. It is fatal for the file
// but never aborts the batch.
type SchemaError struct {
	File    string
	Reason  string
	Missing []string
	Err     error
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema error in %s: missing required columns %v", e.File, e.Missing)
	}
	if e.Err != nil {
		return fmt.Sprintf("schema error in %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema error in %s: %s", e.File, e.Reason)
}

// Unwrap exposes the underlying cause
func (e *SchemaError) Unwrap() error { return e.Err }

// NewSchemaError creates a SchemaError for a file
func NewSchemaError(file, reason string, err error) *SchemaError {
	return &SchemaError{File: file, Reason: reason, Err: err}
}

// RowError records one dropped row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection accumulates row errors up to a cap; rows past the cap
// are still counted so the summary stays honest.
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// NewDateError builds the row error for a timestamp that matched none of
// the platform layouts
func NewDateError(row int, column, value string) RowError {
	return RowError{
		Row: row, Column: column, Code: ErrCodeRowBadDate,
		Message: "unparseable timestamp", Value: value,
	}
}

// NewNumberError builds the row error for a numeric field that failed
// coercion
func NewNumberError(row int, column, message, value string) RowError {
	return RowError{
		Row: row, Column: column, Code: ErrCodeRowBadNumber,
		Message: message, Value: value,
	}
}

// NewEmptyKeyError builds the row error for a blank order id
func NewEmptyKeyError(row int, column string) RowError {
	return RowError{
		Row: row, Column: column, Code: ErrCodeRowEmptyKey,
		Message: "order id is empty",
	}
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// Merge folds another collection into this one
func (ec *ErrorCollection) Merge(other *ErrorCollection) {
	if other == nil {
		return
	}
	for _, e := range other.errors {
		ec.Add(e)
	}
	ec.totalCount += other.totalCount - len(other.errors)
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) found", ec.totalCount))
	if ec.IsTruncated() {
		sb.WriteString(fmt.Sprintf(" (showing first %d)", ec.maxErrors))
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}
