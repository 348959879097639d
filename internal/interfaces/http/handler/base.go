package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/shared"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
	"github.com/erp/syncengine/internal/interfaces/http/middleware"
)

const unexpectedError = "An unexpected error occurred"

var errTenantMissing = errors.New("tenant ID not found in context")

// syncErrorCodes maps connector failure kinds to API codes. Kinds missing
// here surface as internal errors.
var syncErrorCodes = map[integration.ErrorKind]string{
	integration.ErrorKindValidation: dto.ErrCodeValidation,
	integration.ErrorKindMapping:    dto.ErrCodeMappingInvalid,
	integration.ErrorKindAuth:       dto.ErrCodePlatformAuth,
	integration.ErrorKindRateLimit:  dto.ErrCodeRateLimited,
	integration.ErrorKindNetwork:    dto.ErrCodePlatformUnavailable,
	integration.ErrorKindTimeout:    dto.ErrCodePlatformUnavailable,
	integration.ErrorKindConflict:   dto.ErrCodeConflict,
	integration.ErrorKindDuplicate:  dto.ErrCodeAlreadyExists,
}

// BaseHandler writes the response envelopes shared by every handler.
type BaseHandler struct{}

func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantID, err := middleware.GetTenantUUID(c)
	if err != nil {
		return uuid.Nil, err
	}
	if tenantID == uuid.Nil {
		return uuid.Nil, errTenantMissing
	}
	return tenantID, nil
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// tenantAndID resolves the tenant and the :id path parameter. On failure the
// 400 has already been written.
func (h *BaseHandler) tenantAndID(c *gin.Context, badID string) (tenantID, id uuid.UUID, ok bool) {
	if tenantID, ok = h.tenant(c); !ok {
		return
	}
	if id, ok = parseUUIDParam(c, "id"); !ok {
		h.BadRequest(c, badID)
	}
	return
}

func (h *BaseHandler) tenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, false
	}
	return tenantID, true
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted answers requests that queued a sync run.
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail writes an error envelope whose status follows from code.
func (h *BaseHandler) Fail(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Fail(c, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Fail(c, dto.ErrCodeNotFound, message)
}

// BindError reports a request binding failure. Validator errors become
// field details; anything else is a malformed body.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	details := middleware.FormatValidationErrors(err)
	if len(details) == 0 {
		h.Fail(c, dto.ErrCodeInvalidJSON, err.Error())
		return
	}
	c.JSON(http.StatusBadRequest,
		dto.NewValidationErrorResponse("Request validation failed", middleware.GetRequestID(c), details))
}

// HandleError writes the API error for err. Domain errors carry their code,
// sync failures are mapped by kind, and anything else is a 500 whose cause
// stays in the logs.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	var (
		domainErr *shared.DomainError
		syncErr   *integration.SyncError
	)
	switch {
	case errors.As(err, &domainErr):
		h.Fail(c, dto.NormalizeErrorCode(domainErr.Code), err.Error())
	case errors.As(err, &syncErr):
		h.failSync(c, syncErr)
	default:
		h.Fail(c, dto.ErrCodeInternal, unexpectedError)
	}
}

func (h *BaseHandler) failSync(c *gin.Context, err *integration.SyncError) {
	code, ok := syncErrorCodes[err.Kind]
	if !ok {
		h.Fail(c, dto.ErrCodeInternal, unexpectedError)
		return
	}
	if err.Kind == integration.ErrorKindRateLimit && err.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(err.RetryAfter.Seconds()))))
	}

	resp := dto.NewErrorResponseWithHelp(code, err.Error(), middleware.GetRequestID(c), err.Kind.Remediation())
	for _, fe := range err.FieldErrors {
		resp.Error.Details = append(resp.Error.Details, dto.ValidationDetail{Field: fe.Field, Message: fe.Message})
	}
	c.JSON(dto.GetHTTPStatus(code), resp)
}
