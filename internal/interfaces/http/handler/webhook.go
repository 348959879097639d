package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
)

// maxWebhookBodySize bounds a single platform delivery
const maxWebhookBodySize = 1 << 20

// WebhookIngester accepts signed platform events
type WebhookIngester interface {
	Ingest(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode, body []byte, signature string) (*syncapp.WebhookResult, error)
}

// WebhookHandler receives platform change notifications. The routes sit
// outside bearer auth; the HMAC signature authenticates the caller.
type WebhookHandler struct {
	BaseHandler
	ingester WebhookIngester
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingester WebhookIngester) *WebhookHandler {
	return &WebhookHandler{ingester: ingester}
}

// Receive godoc
// @ID           receiveWebhook
//
//	@Summary		Receive a platform webhook
//	@Description	Verifies the X-Sync-Signature HMAC, deduplicates by event key and queues targeted incremental runs.
//	@Description	Redelivered events are answered with 200 and the duplicate outcome.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			platform			path		string	true	"Sending platform"	Enums(storefront, accounting, warehouse)
//	@Param			tenant_id			path		string	true	"Tenant ID"			format(uuid)
//	@Param			X-Sync-Signature	header		string	true	"HMAC-SHA256 of the body"
//	@Success		200					{object}	APIResponse[syncapp.WebhookResult]
//	@Success		202					{object}	APIResponse[syncapp.WebhookResult]
//	@Failure		400					{object}	ErrorResponse
//	@Failure		401					{object}	ErrorResponse
//	@Failure		413					{object}	ErrorResponse
//	@Router			/webhooks/{platform}/{tenant_id} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform := integration.SystemCode(c.Param("platform"))
	if !platform.IsValid() || platform == integration.SystemLocal {
		h.NotFound(c, "Unknown webhook platform")
		return
	}
	tenantID, ok := parseUUIDParam(c, "tenant_id")
	if !ok || tenantID == uuid.Nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(body) > maxWebhookBodySize {
		h.Fail(c, dto.ErrCodePayloadTooLarge, "Webhook payload exceeds the size limit")
		return
	}
	if len(body) == 0 {
		h.BadRequest(c, "Request body is empty")
		return
	}

	result, err := h.ingester.Ingest(c.Request.Context(), tenantID, platform, body, c.GetHeader(syncapp.SignatureHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Outcome == syncapp.WebhookDuplicate {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(result))
		return
	}
	h.Accepted(c, result)
}
