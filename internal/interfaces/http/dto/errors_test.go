package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	byStatus := map[int][]string{
		http.StatusBadRequest:            {ErrCodeValidation, ErrCodeInvalidInput, ErrCodeInvalidJSON},
		http.StatusUnauthorized:          {ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeInvalidSignature},
		http.StatusForbidden:             {ErrCodeForbidden},
		http.StatusNotFound:              {ErrCodeNotFound},
		http.StatusConflict:              {ErrCodeAlreadyExists, ErrCodeConflict, ErrCodeSyncInProgress},
		http.StatusRequestEntityTooLarge: {ErrCodePayloadTooLarge},
		http.StatusUnprocessableEntity:   {ErrCodeInvalidState, ErrCodeNotResumable, ErrCodeMappingInvalid, ErrCodeConnectorDisabled},
		http.StatusTooManyRequests:       {ErrCodeRateLimited},
		http.StatusBadGateway:            {ErrCodePlatformAuth, ErrCodePlatformUnavailable},
		http.StatusInternalServerError:   {ErrCodeInternal, "ERR_SOMETHING_NEW", ""},
	}
	for status, codes := range byStatus {
		for _, code := range codes {
			assert.Equal(t, status, GetHTTPStatus(code), "code %q", code)
		}
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	for in, want := range map[string]string{
		"NOT_FOUND":           ErrCodeNotFound,
		"INVALID_STATE":       ErrCodeInvalidState,
		"CONNECTOR_DISABLED":  ErrCodeConnectorDisabled,
		ErrCodeSyncInProgress: ErrCodeSyncInProgress,
		"":                    ErrCodeInternal,
	} {
		assert.Equal(t, want, NormalizeErrorCode(in), "input %q", in)
	}
}

func TestErrorCodesArePrefixed(t *testing.T) {
	for code, status := range codeStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), code)
		assert.GreaterOrEqual(t, status, 400, code)
	}
}

func TestErrorConstructors(t *testing.T) {
	start := time.Now()
	details := []ValidationDetail{{Field: "billing_address.city", Message: "is required"}}

	cases := map[string]struct {
		resp      Response
		code      string
		requestID string
		help      string
		details   int
	}{
		"bare code is normalized": {
			resp: NewErrorResponse("NOT_FOUND", "Sync not found"),
			code: ErrCodeNotFound,
		},
		"request id": {
			resp:      NewErrorResponseWithRequestID(ErrCodeSyncInProgress, "already running", "req-1"),
			code:      ErrCodeSyncInProgress,
			requestID: "req-1",
		},
		"validation details": {
			resp:      NewValidationErrorResponse("Validation failed", "req-2", details),
			code:      ErrCodeValidation,
			requestID: "req-2",
			details:   1,
		},
		"help text": {
			resp:      NewErrorResponseWithHelp(ErrCodePlatformAuth, "accounting rejected the credential", "req-3", "Reconnect the account"),
			code:      ErrCodePlatformAuth,
			requestID: "req-3",
			help:      "Reconnect the account",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, tc.resp.Success)
			assert.Nil(t, tc.resp.Data)
			require.NotNil(t, tc.resp.Error)
			assert.Equal(t, tc.code, tc.resp.Error.Code)
			assert.Equal(t, tc.requestID, tc.resp.Error.RequestID)
			assert.Equal(t, tc.help, tc.resp.Error.Help)
			assert.Len(t, tc.resp.Error.Details, tc.details)
			assert.False(t, tc.resp.Error.Timestamp.Before(start))
		})
	}
}

func TestErrorResponse_OmitsEmptyDetails(t *testing.T) {
	data, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeNotFound, "Conflict not found", "req-4"))
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.JSONEq(t, "false", string(envelope["success"]))

	var body map[string]any
	require.NoError(t, json.Unmarshal(envelope["error"], &body))
	assert.Equal(t, "req-4", body["request_id"])
	assert.NotContains(t, body, "details")
	assert.NotContains(t, body, "help")
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"status": "queued"})

	assert.True(t, resp.Success)
	assert.Equal(t, map[string]string{"status": "queued"}, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
}

func TestNewSuccessResponseWithMeta_Pages(t *testing.T) {
	// total, pageSize -> totalPages, effective pageSize
	cases := [][4]int{
		{100, 10, 10, 10},
		{101, 10, 11, 10},
		{0, 10, 0, 10},
		{9, 10, 1, 10},
		{100, 0, 5, DefaultPageSize},
		{100, -1, 5, DefaultPageSize},
	}
	for _, c := range cases {
		resp := NewSuccessResponseWithMeta(nil, int64(c[0]), 2, c[1])
		require.NotNil(t, resp.Meta)
		assert.Equal(t, c[2], resp.Meta.TotalPages, "total=%d size=%d", c[0], c[1])
		assert.Equal(t, c[3], resp.Meta.PageSize)
		assert.Equal(t, 2, resp.Meta.Page)
	}
}
