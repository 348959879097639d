package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
)

// IdempotencyKeyHeader deduplicates sync triggers
const IdempotencyKeyHeader = "Idempotency-Key"

// SyncRunner admits and controls sync runs
type SyncRunner interface {
	Trigger(ctx context.Context, cmd syncapp.TriggerCommand) (*integration.SyncState, error)
	Status(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error)
	List(ctx context.Context, tenantID uuid.UUID, filter integration.SyncStateFilter) ([]integration.SyncState, int64, error)
	Cancel(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error)
	Resume(ctx context.Context, tenantID, syncID uuid.UUID) (*integration.SyncState, error)
}

// FailedRecordRetrier lists and retries entity-level failures
type FailedRecordRetrier interface {
	ListUnresolved(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) ([]integration.FailedRecord, error)
	RetryRecord(ctx context.Context, tenantID, failedRecordID uuid.UUID) (*integration.SyncState, error)
	RetryAll(ctx context.Context, tenantID, connectorID uuid.UUID, entityType integration.EntityType) (*integration.SyncState, error)
}

// SyncHandler handles sync run and failed record endpoints
type SyncHandler struct {
	BaseHandler
	runs    SyncRunner
	retries FailedRecordRetrier
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(runs SyncRunner, retries FailedRecordRetrier) *SyncHandler {
	return &SyncHandler{runs: runs, retries: retries}
}

// SyncScopeRequest narrows a run to specific records or a modification window
//
//	@Description	Optional run scope
type SyncScopeRequest struct {
	IDs           []string          `json:"ids" binding:"omitempty,max=1000,dive,min=1,max=255"`
	Filters       map[string]string `json:"filters"`
	ModifiedSince *time.Time        `json:"modified_since"`
	Reverse       bool              `json:"reverse"`
}

// TriggerSyncRequest requests a sync run
//
//	@Description	Request body for triggering a sync run
type TriggerSyncRequest struct {
	ConnectorID string            `json:"connector_id" binding:"required,uuid" example:"3f0e2a0c-8a1f-4b8e-9d8a-1c2b3d4e5f60"`
	EntityType  string            `json:"entity_type" binding:"required,entity_type" example:"order"`
	Mode        string            `json:"mode" binding:"omitempty,sync_mode" example:"incremental"`
	DryRun      bool              `json:"dry_run" example:"false"`
	Scope       *SyncScopeRequest `json:"scope"`
}

// ListSyncsQuery filters the run history
type ListSyncsQuery struct {
	ConnectorID string `form:"connector_id" binding:"omitempty,uuid"`
	EntityType  string `form:"entity_type" binding:"omitempty,entity_type"`
	Status      string `form:"status" binding:"omitempty,oneof=pending running success partial_failure failed cancelled"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RetryAllRequest retries every open failure of an entity type
//
//	@Description	Request body for retrying all failures of a connector
type RetryAllRequest struct {
	EntityType string `json:"entity_type" binding:"required,entity_type" example:"customer"`
}

// Trigger godoc
// @ID           triggerSync
//
//	@Summary		Trigger a sync run
//	@Description	Admits a run and queues it. The response carries the run ID to poll.
//	@Tags			syncs
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string				false	"Returns the first run created with this key"
//	@Param			request			body		TriggerSyncRequest	true	"Run request"
//	@Success		202				{object}	APIResponse[syncapp.SyncStateResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		404				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse
//	@Failure		422				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/syncs [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	cmd := syncapp.TriggerCommand{
		TenantID:       tenantID,
		ConnectorID:    uuid.MustParse(req.ConnectorID),
		EntityType:     integration.EntityType(req.EntityType),
		Mode:           integration.SyncMode(req.Mode),
		DryRun:         req.DryRun,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		Trigger:        integration.TriggerAPI,
	}
	if cmd.Mode == "" {
		cmd.Mode = integration.SyncModeIncremental
	}
	if req.Scope != nil {
		cmd.Scope = integration.SyncScope{
			IDs:           req.Scope.IDs,
			Filters:       req.Scope.Filters,
			ModifiedSince: req.Scope.ModifiedSince,
			Reverse:       req.Scope.Reverse,
		}
	}

	state, err := h.runs.Trigger(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, syncapp.ToSyncStateResponse(state))
}

// Get godoc
// @ID           getSync
//
//	@Summary		Get sync run status
//	@Tags			syncs
//	@Produce		json
//	@Param			id	path		string	true	"Sync ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.SyncStateResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/syncs/{id} [get]
func (h *SyncHandler) Get(c *gin.Context) {
	tenantID, syncID, ok := h.tenantAndID(c, "Invalid sync ID format")
	if !ok {
		return
	}

	state, err := h.runs.Status(c.Request.Context(), tenantID, syncID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToSyncStateResponse(state))
}

// List godoc
// @ID           listSyncs
//
//	@Summary		List sync runs
//	@Tags			syncs
//	@Produce		json
//	@Param			connector_id	query		string	false	"Connector ID"
//	@Param			entity_type		query		string	false	"Entity type"	Enums(order, customer, product)
//	@Param			status			query		string	false	"Run status"
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Page size"		default(20)
//	@Success		200				{object}	APIResponse[[]syncapp.SyncStateListResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/syncs [get]
func (h *SyncHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var q ListSyncsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	filter := integration.SyncStateFilter{Page: q.Page, PageSize: q.PageSize}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if q.ConnectorID != "" {
		id := uuid.MustParse(q.ConnectorID)
		filter.ConnectorID = &id
	}
	if q.EntityType != "" {
		et := integration.EntityType(q.EntityType)
		filter.EntityType = &et
	}
	if q.Status != "" {
		st := integration.SyncStatus(q.Status)
		filter.Status = &st
	}

	states, total, err := h.runs.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, syncapp.ToSyncStateListResponses(states), total, filter.Page, filter.PageSize)
}

// Cancel godoc
// @ID           cancelSync
//
//	@Summary		Cancel a sync run
//	@Description	The current page finishes; no further page is started
//	@Tags			syncs
//	@Produce		json
//	@Param			id	path		string	true	"Sync ID"	format(uuid)
//	@Success		202	{object}	APIResponse[syncapp.SyncStateResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/syncs/{id}/cancel [post]
func (h *SyncHandler) Cancel(c *gin.Context) {
	tenantID, syncID, ok := h.tenantAndID(c, "Invalid sync ID format")
	if !ok {
		return
	}

	state, err := h.runs.Cancel(c.Request.Context(), tenantID, syncID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, syncapp.ToSyncStateResponse(state))
}

// Resume godoc
// @ID           resumeSync
//
//	@Summary		Resume an interrupted sync run
//	@Description	Continues after the last checkpointed page
//	@Tags			syncs
//	@Produce		json
//	@Param			id	path		string	true	"Sync ID"	format(uuid)
//	@Success		202	{object}	APIResponse[syncapp.SyncStateResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/syncs/{id}/resume [post]
func (h *SyncHandler) Resume(c *gin.Context) {
	tenantID, syncID, ok := h.tenantAndID(c, "Invalid sync ID format")
	if !ok {
		return
	}

	state, err := h.runs.Resume(c.Request.Context(), tenantID, syncID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, syncapp.ToSyncStateResponse(state))
}

// ListFailedRecords godoc
// @ID           listFailedRecords
//
//	@Summary		List unresolved failed records
//	@Tags			failed-records
//	@Produce		json
//	@Param			id			path		string	true	"Connector ID"	format(uuid)
//	@Param			entity_type	query		string	true	"Entity type"	Enums(order, customer, product)
//	@Success		200			{object}	APIResponse[[]syncapp.FailedRecordResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/connectors/{id}/failed-records [get]
func (h *SyncHandler) ListFailedRecords(c *gin.Context) {
	tenantID, connectorID, ok := h.tenantAndID(c, "Invalid connector ID format")
	if !ok {
		return
	}
	entityType := integration.EntityType(c.Query("entity_type"))
	if !entityType.IsValid() {
		h.BadRequest(c, "entity_type must be one of order, customer, product")
		return
	}

	recs, err := h.retries.ListUnresolved(c.Request.Context(), tenantID, connectorID, entityType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToFailedRecordResponses(recs))
}

// RetryFailedRecord godoc
// @ID           retryFailedRecord
//
//	@Summary		Retry one failed record
//	@Description	Queues a targeted run for the record
//	@Tags			failed-records
//	@Produce		json
//	@Param			id	path		string	true	"Failed record ID"	format(uuid)
//	@Success		202	{object}	APIResponse[syncapp.SyncStateResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/failed-records/{id}/retry [post]
func (h *SyncHandler) RetryFailedRecord(c *gin.Context) {
	tenantID, recordID, ok := h.tenantAndID(c, "Invalid failed record ID format")
	if !ok {
		return
	}

	state, err := h.retries.RetryRecord(c.Request.Context(), tenantID, recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, syncapp.ToSyncStateResponse(state))
}

// RetryAll godoc
// @ID           retryAllFailedRecords
//
//	@Summary		Retry all failed records of a connector
//	@Tags			failed-records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Connector ID"	format(uuid)
//	@Param			request	body		RetryAllRequest	true	"Entity type to retry"
//	@Success		202		{object}	APIResponse[syncapp.SyncStateResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/connectors/{id}/retry [post]
func (h *SyncHandler) RetryAll(c *gin.Context) {
	tenantID, connectorID, ok := h.tenantAndID(c, "Invalid connector ID format")
	if !ok {
		return
	}

	var req RetryAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	state, err := h.retries.RetryAll(c.Request.Context(), tenantID, connectorID, integration.EntityType(req.EntityType))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, syncapp.ToSyncStateResponse(state))
}
