package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
)

// CredentialManager stores platform credentials
type CredentialManager interface {
	Store(ctx context.Context, tenantID uuid.UUID, cmd syncapp.StoreCredentialCommand) (*syncapp.CredentialView, error)
	Get(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) (*syncapp.CredentialView, error)
	Delete(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) error
}

// CredentialHandler handles platform credential endpoints. Secrets are
// write-only: responses only say which parts are present.
type CredentialHandler struct {
	BaseHandler
	credentials CredentialManager
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(credentials CredentialManager) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// StoreCredentialRequest carries a platform secret and optional OAuth tokens
//
//	@Description	Request body for storing a platform credential
type StoreCredentialRequest struct {
	Secret       string            `json:"secret" binding:"required,max=4096" example:"sk_live_51H..."`
	AccessToken  string            `json:"access_token" binding:"max=4096"`
	RefreshToken string            `json:"refresh_token" binding:"max=4096"`
	ExpiresAt    *time.Time        `json:"expires_at"`
	Metadata     map[string]string `json:"metadata"`
}

func (h *CredentialHandler) platformParam(c *gin.Context) (integration.SystemCode, bool) {
	platform := integration.SystemCode(c.Param("platform"))
	if !platform.IsValid() || platform == integration.SystemLocal {
		h.BadRequest(c, "Unknown platform")
		return "", false
	}
	return platform, true
}

// Store godoc
// @ID           storeCredential
//
//	@Summary		Store a platform credential
//	@Description	Encrypts and stores the credential, replacing any previous one
//	@Tags			credentials
//	@Accept			json
//	@Produce		json
//	@Param			platform	path		string					true	"Platform"	Enums(storefront, accounting, warehouse)
//	@Param			request		body		StoreCredentialRequest	true	"Credential"
//	@Success		200			{object}	APIResponse[syncapp.CredentialView]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/credentials/{platform} [put]
func (h *CredentialHandler) Store(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}

	var req StoreCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	view, err := h.credentials.Store(c.Request.Context(), tenantID, syncapp.StoreCredentialCommand{
		Platform:     platform,
		Secret:       req.Secret,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    req.ExpiresAt,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Get godoc
// @ID           getCredential
//
//	@Summary		Describe a stored credential
//	@Tags			credentials
//	@Produce		json
//	@Param			platform	path		string	true	"Platform"
//	@Success		200			{object}	APIResponse[syncapp.CredentialView]
//	@Failure		404			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/credentials/{platform} [get]
func (h *CredentialHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}

	view, err := h.credentials.Get(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Delete godoc
// @ID           deleteCredential
//
//	@Summary		Delete a stored credential
//	@Tags			credentials
//	@Param			platform	path	string	true	"Platform"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/credentials/{platform} [delete]
func (h *CredentialHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}

	if err := h.credentials.Delete(c.Request.Context(), tenantID, platform); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
