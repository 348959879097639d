package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/syncengine/internal/domain/shared"
)

// Sentinel errors. Each carries the API code it surfaces as.
var (
	ErrInvalidTenantID       = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid tenant ID")
	ErrInvalidEntityType     = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid entity type")
	ErrInvalidSystemCode     = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid system code")
	ErrInvalidSyncMode       = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid sync mode")
	ErrInvalidDirection      = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid sync direction")
	ErrInvalidStrategy       = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid resolution strategy")
	ErrConnectorNotFound     = shared.NewDomainError(shared.CodeNotFound, "integration: connector not configured")
	ErrConnectorDisabled     = shared.NewDomainError(shared.CodeConnectorDisabled, "integration: connector disabled")
	ErrCredentialNotFound    = shared.NewDomainError(shared.CodeNotFound, "integration: credential not found")
	ErrMappingNotFound       = shared.NewDomainError(shared.CodeNotFound, "integration: field mapping not found")
	ErrMappingExists         = shared.NewDomainError(shared.CodeAlreadyExists, "integration: field mapping already exists for this system pair")
	ErrIDMappingNotFound     = shared.NewDomainError(shared.CodeNotFound, "integration: id mapping not found")
	ErrIDMappingExists       = shared.NewDomainError(shared.CodeAlreadyExists, "integration: id mapping already exists")
	ErrSyncNotFound          = shared.NewDomainError(shared.CodeNotFound, "integration: sync not found")
	ErrSyncInProgress        = shared.NewDomainError(shared.CodeSyncInProgress, "integration: sync already in progress")
	ErrInvalidTransition     = shared.NewDomainError(shared.CodeInvalidState, "integration: invalid sync status transition")
	ErrSyncNotResumable      = shared.NewDomainError(shared.CodeNotResumable, "integration: sync is not resumable")
	ErrConflictNotFound      = shared.NewDomainError(shared.CodeNotFound, "integration: conflict not found")
	ErrConflictResolved      = shared.NewDomainError(shared.CodeInvalidState, "integration: conflict already resolved")
	ErrFailedRecordNotFound  = shared.NewDomainError(shared.CodeNotFound, "integration: failed record not found")
	ErrScheduleNotFound      = shared.NewDomainError(shared.CodeNotFound, "integration: schedule not found")
	ErrInvalidCronExpression = shared.NewDomainError(shared.CodeInvalidInput, "integration: invalid cron expression")
	ErrInvalidSignature      = shared.NewDomainError(shared.CodeInvalidSignature, "integration: invalid webhook signature")
	ErrUnsupportedPayload    = shared.NewDomainError(shared.CodeInvalidInput, "integration: unsupported webhook payload")
	ErrEntityNotFound        = shared.NewDomainError(shared.CodeNotFound, "integration: entity not found")
	ErrOperationUnsupported  = shared.NewDomainError(shared.CodeUnsupported, "integration: operation not supported by connector")
)

// ---------------------------------------------------------------------------
// ErrorKind is the sync error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies a sync failure
type ErrorKind string

const (
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindMapping    ErrorKind = "mapping"
	ErrorKindConflict   ErrorKind = "conflict"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindDuplicate  ErrorKind = "duplicate"
	ErrorKindInternal   ErrorKind = "internal"
)

// IsTransient returns true if errors of this kind may succeed on retry
func (k ErrorKind) IsTransient() bool {
	switch k {
	case ErrorKindRateLimit, ErrorKindNetwork, ErrorKindTimeout:
		return true
	default:
		return false
	}
}

// Remediation returns a suggested next step for an operator
func (k ErrorKind) Remediation() string {
	switch k {
	case ErrorKindAuth:
		return "Reconnect the platform account and update its credentials"
	case ErrorKindRateLimit:
		return "Wait for the platform rate limit window to reset; the record will be retried"
	case ErrorKindValidation:
		return "Correct the listed fields on the source record or adjust the field mapping"
	case ErrorKindMapping:
		return "Fix the field mapping configuration and run the sync again"
	case ErrorKindConflict:
		return "Review the conflict and choose which value to keep"
	case ErrorKindNetwork, ErrorKindTimeout:
		return "Check platform availability; retry the failed records once it recovers"
	case ErrorKindDuplicate:
		return "No action required"
	default:
		return "Retry the record; contact support if the failure persists"
	}
}

// FieldError is a field-level validation detail
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SyncError is a classified error raised by connectors, the mapping engine or the orchestrator
type SyncError struct {
	Kind        ErrorKind
	Message     string
	RetryAfter  time.Duration
	FieldErrors []FieldError
	Err         error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for i, fe := range e.FieldErrors {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field)
		b.WriteString(": ")
		b.WriteString(fe.Message)
		if i == len(e.FieldErrors)-1 {
			b.WriteString(")")
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewAuthError creates an auth error
func NewAuthError(message string, cause error) *SyncError {
	return &SyncError{Kind: ErrorKindAuth, Message: message, Err: cause}
}

// NewRateLimitError creates a rate limit error carrying the retry-after hint
func NewRateLimitError(message string, retryAfter time.Duration) *SyncError {
	return &SyncError{Kind: ErrorKindRateLimit, Message: message, RetryAfter: retryAfter}
}

// NewValidationError creates a validation error with field detail
func NewValidationError(message string, fields ...FieldError) *SyncError {
	return &SyncError{Kind: ErrorKindValidation, Message: message, FieldErrors: fields}
}

// NewMappingError creates a mapping configuration error
func NewMappingError(message string, fields ...FieldError) *SyncError {
	return &SyncError{Kind: ErrorKindMapping, Message: message, FieldErrors: fields}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *SyncError {
	return &SyncError{Kind: ErrorKindConflict, Message: message}
}

// NewNetworkError creates a transient network error
func NewNetworkError(message string, cause error) *SyncError {
	return &SyncError{Kind: ErrorKindNetwork, Message: message, Err: cause}
}

// NewTimeoutError creates a transient timeout error
func NewTimeoutError(message string, cause error) *SyncError {
	return &SyncError{Kind: ErrorKindTimeout, Message: message, Err: cause}
}

// NewDuplicateError creates a duplicate (no-op) error
func NewDuplicateError(message string) *SyncError {
	return &SyncError{Kind: ErrorKindDuplicate, Message: message}
}

// KindOf returns the ErrorKind of err. Context deadlines are timeouts; anything
// unclassified is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	if errors.Is(err, ErrSyncInProgress) || errors.Is(err, ErrIDMappingExists) {
		return ErrorKindDuplicate
	}
	return ErrorKindInternal
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	return KindOf(err).IsTransient()
}

// RetryAfterOf returns the retry-after hint carried by err, if any
func RetryAfterOf(err error) time.Duration {
	var se *SyncError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// FieldErrorsOf returns field-level details carried by err, if any
func FieldErrorsOf(err error) []FieldError {
	var se *SyncError
	if errors.As(err, &se) {
		return se.FieldErrors
	}
	return nil
}

// WrapKind classifies an arbitrary error with the given kind unless it is already classified
func WrapKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	return &SyncError{Kind: kind, Err: err}
}
