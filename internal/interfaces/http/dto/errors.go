package dto

import (
	"net/http"
	"strings"
)

// API error codes, ERR_<DESCRIPTION>. Clients switch on these, so existing
// values never change.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput     = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodePayloadTooLarge  = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"

	// sync run and connector state
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeSyncInProgress      = "ERR_SYNC_IN_PROGRESS"
	ErrCodeNotResumable        = "ERR_NOT_RESUMABLE"
	ErrCodeConnectorDisabled   = "ERR_CONNECTOR_DISABLED"
	ErrCodeMappingInvalid      = "ERR_MAPPING_INVALID"
	ErrCodeUnsupported         = "ERR_UNSUPPORTED"
	ErrCodePlatformAuth        = "ERR_PLATFORM_AUTH"
	ErrCodePlatformUnavailable = "ERR_PLATFORM_UNAVAILABLE"
)

var codeStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeInvalidSignature: http.StatusUnauthorized,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeSyncInProgress:    http.StatusConflict,
	ErrCodeNotResumable:      http.StatusUnprocessableEntity,
	ErrCodeConnectorDisabled: http.StatusUnprocessableEntity,
	ErrCodeMappingInvalid:    http.StatusUnprocessableEntity,
	ErrCodeUnsupported:       http.StatusUnprocessableEntity,
	// the platform failed, not the caller
	ErrCodePlatformAuth:        http.StatusBadGateway,
	ErrCodePlatformUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the status for code, 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode prefixes bare domain codes such as "NOT_FOUND" with
// "ERR_". Empty codes become ERR_INTERNAL.
func NormalizeErrorCode(code string) string {
	switch {
	case code == "":
		return ErrCodeInternal
	case strings.HasPrefix(code, "ERR_"):
		return code
	default:
		return "ERR_" + code
	}
}
