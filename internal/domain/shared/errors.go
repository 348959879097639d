// Package shared holds the small set of types every layer of the sync
// engine agrees on: coded domain errors and the idempotency store contract.
package shared

// Codes carried by DomainError. The HTTP layer prefixes them with ERR_ and
// maps each to a status.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidState      = "INVALID_STATE"
	CodeSyncInProgress    = "SYNC_IN_PROGRESS"
	CodeNotResumable      = "NOT_RESUMABLE"
	CodeConnectorDisabled = "CONNECTOR_DISABLED"
	CodeUnsupported       = "UNSUPPORTED"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
)

// DomainError is a sentinel with a stable machine readable code. Compare
// with errors.Is; wrapping keeps the code reachable through errors.As.
type DomainError struct {
	Code    string
	Message string
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}
