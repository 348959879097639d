package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
)

// ConflictReviewer lists and resolves field conflicts
type ConflictReviewer interface {
	List(ctx context.Context, tenantID uuid.UUID, filter integration.ConflictFilter) ([]integration.SyncConflict, int64, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncConflict, error)
	Resolve(ctx context.Context, tenantID, id uuid.UUID, choice integration.Side) (*integration.SyncConflict, error)
}

// ConflictHandler handles the conflict review queue
type ConflictHandler struct {
	BaseHandler
	conflicts ConflictReviewer
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflicts ConflictReviewer) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts}
}

// ListConflictsQuery filters conflicts
type ListConflictsQuery struct {
	ConnectorID string `form:"connector_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=resolved pending_review"`
	EntityType  string `form:"entity_type" binding:"omitempty,entity_type"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ResolveConflictRequest picks the winning side of a pending conflict
//
//	@Description	Request body for resolving a conflict manually
type ResolveConflictRequest struct {
	Choice string `json:"choice" binding:"required,oneof=source target" example:"source"`
}

// List godoc
// @ID           listConflicts
//
//	@Summary		List conflicts
//	@Tags			conflicts
//	@Produce		json
//	@Param			connector_id	query		string	false	"Connector ID"
//	@Param			status			query		string	false	"Status"	Enums(resolved, pending_review)
//	@Param			entity_type		query		string	false	"Entity type"
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Page size"		default(20)
//	@Success		200				{object}	APIResponse[[]syncapp.ConflictResponse]
//	@Security		BearerAuth
//	@Router			/conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var q ListConflictsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	filter := integration.ConflictFilter{Page: max(q.Page, 1), PageSize: q.PageSize}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if q.ConnectorID != "" {
		id := uuid.MustParse(q.ConnectorID)
		filter.ConnectorID = &id
	}
	if q.Status != "" {
		st := integration.ConflictStatus(q.Status)
		filter.Status = &st
	}
	if q.EntityType != "" {
		et := integration.EntityType(q.EntityType)
		filter.EntityType = &et
	}

	conflicts, total, err := h.conflicts.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, syncapp.ToConflictResponses(conflicts), total, filter.Page, filter.PageSize)
}

// Get godoc
// @ID           getConflict
//
//	@Summary		Get a conflict
//	@Tags			conflicts
//	@Produce		json
//	@Param			id	path		string	true	"Conflict ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.ConflictResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/conflicts/{id} [get]
func (h *ConflictHandler) Get(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid conflict ID format")
	if !ok {
		return
	}

	conflict, err := h.conflicts.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToConflictResponse(conflict))
}

// Resolve godoc
// @ID           resolveConflict
//
//	@Summary		Resolve a pending conflict
//	@Description	Writes the chosen side's value to the other system and closes the conflict
//	@Tags			conflicts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Conflict ID"	format(uuid)
//	@Param			request	body		ResolveConflictRequest	true	"Winning side"
//	@Success		200		{object}	APIResponse[syncapp.ConflictResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid conflict ID format")
	if !ok {
		return
	}

	var req ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	conflict, err := h.conflicts.Resolve(c.Request.Context(), tenantID, id, integration.Side(req.Choice))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToConflictResponse(conflict))
}
