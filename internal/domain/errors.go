package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeExtraction    = "EXTRACTION_ERROR"
	ErrCodeChunking      = "CHUNKING_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidItemType = NewDomainError(ErrCodeValidation, "invalid item type")
	ErrUnknownModel    = NewDomainError(ErrCodeValidation, "unknown embedding model")
	ErrInvalidCursor   = NewDomainError(ErrCodeValidation, "invalid pagination cursor")
)

// Not found errors
var (
	ErrBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
	ErrItemNotFound = NewDomainError(ErrCodeNotFound, "knowledge item not found")
)

// Pipeline errors
var (
	ErrEmptyExtraction   = NewDomainError(ErrCodeExtraction, "extraction produced no text")
	ErrInvalidTransition = NewDomainError(ErrCodeStore, "invalid item status transition")
)
