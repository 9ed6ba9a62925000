package order

// Error codes surfaced by the ingestion and query pipeline.
const (
	ErrCodeSchemaError        = "SCHEMA_ERROR"
	ErrCodeRowParseError      = "ROW_PARSE_ERROR"
	ErrCodeDataLossSuspected  = "DATA_LOSS_SUSPECTED"
	ErrCodeIntegrityViolation = "INTEGRITY_VIOLATION"
	ErrCodeInsufficientData   = "INSUFFICIENT_DATA"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError(ErrCodeNotFound, "resource not found")
	ErrInvalidInput = NewDomainError(ErrCodeInvalidInput, "invalid input provided")
)
