package domain

import (
	"errors"
	"fmt"
	"strings"
)

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
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeIngestion      = "INGESTION_ERROR"
	ErrCodeEmbeddingQuota = "EMBEDDING_QUOTA_EXCEEDED"
	ErrCodeRetrieval      = "RETRIEVAL_UNAVAILABLE"
	ErrCodeGeneration     = "GENERATION_FAILED"
	ErrCodeMalformed      = "MALFORMED_OUTPUT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidSourceType    = NewDomainError(ErrCodeValidation, "invalid document source type")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyMessage         = NewDomainError(ErrCodeValidation, "message cannot be empty")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// Ingestion errors
var (
	ErrSourceUnreadable = NewDomainError(ErrCodeIngestion, "source could not be read")
	ErrSourceEmpty      = NewDomainError(ErrCodeIngestion, "source contains no extractable text")
	ErrSourceTooShort   = NewDomainError(ErrCodeIngestion, "source is too short to process")

	// ErrEmbeddingQuotaExceeded means pacing and backoff were exhausted while
	// embedding a document. The whole ingestion aborts; no partial chunk set
	// is ever persisted.
	ErrEmbeddingQuotaExceeded = NewDomainError(ErrCodeEmbeddingQuota,
		"embedding provider quota exhausted; wait a few minutes and retry the upload")
)

// Retrieval errors
var (
	// ErrRetrievalUnavailable means the vector store was unreachable.
	// Generation must not proceed ungrounded when retrieval itself failed.
	ErrRetrievalUnavailable = NewDomainError(ErrCodeRetrieval,
		"similarity search is unavailable; try again shortly")
)

// ErrorClass is the two-valued failure classification fed to the rotation
// engine. Provider-specific shapes are normalized into it at the adapter
// boundary so the engine never sees raw provider errors.
type ErrorClass string

const (
	// ErrorClassTransient covers rate limiting, timeouts and 5xx responses.
	// Worth retrying on the same candidate with backoff.
	ErrorClassTransient ErrorClass = "transient"
	// ErrorClassPermanent covers malformed requests, auth failures and
	// content-policy rejections. Retrying the same candidate cannot help.
	ErrorClassPermanent ErrorClass = "permanent"
)

// ProviderError wraps one upstream generation or embedding failure with its
// classification. Internal only: callers see AllProvidersFailedError.
type ProviderError struct {
	Class  ErrorClass
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider error (%s, status %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewTransientError wraps err as a retryable provider failure.
func NewTransientError(err error) *ProviderError {
	return &ProviderError{Class: ErrorClassTransient, Err: err}
}

// NewPermanentError wraps err as a non-retryable provider failure.
func NewPermanentError(err error) *ProviderError {
	return &ProviderError{Class: ErrorClassPermanent, Err: err}
}

// ErrMalformedOutput marks a parser rejection of a model's raw output. It is
// permanent for the candidate that produced it: a broken response rarely
// self-corrects on a verbatim retry.
func ErrMalformedOutput(err error) *ProviderError {
	return &ProviderError{
		Class: ErrorClassPermanent,
		Err:   NewDomainErrorWithCause(ErrCodeMalformed, "model returned an unparseable response", err),
	}
}

// AsProviderError returns err as a *ProviderError if it is one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AttemptFailure records why one candidate failed, in attempt order.
type AttemptFailure struct {
	Candidate ModelCandidate
	Class     ErrorClass
	Reason    string
}

// AllProvidersFailedError is the terminal rotation failure: every candidate
// in the priority list was attempted and none produced a result. Attempts
// holds one entry per tried candidate so callers can diagnose which link
// broke.
type AllProvidersFailedError struct {
	Task     TaskKind
	Attempts []AttemptFailure
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s: %s)", a.Candidate, a.Class, a.Reason))
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Task, strings.Join(parts, "; "))
}

// Summary returns the human-readable message shown to callers, distinct from
// the per-candidate diagnostics.
func (e *AllProvidersFailedError) Summary() string {
	return fmt.Sprintf("every configured model failed to generate %s; try again in a minute", e.Task)
}
