package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
)

// ScheduleManager manages recurring sync schedules
type ScheduleManager interface {
	Upsert(ctx context.Context, tenantID uuid.UUID, cmd syncapp.ScheduleCommand) (*integration.SyncSchedule, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]integration.SyncSchedule, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Acknowledge(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncSchedule, error)
}

// ScheduleHandler handles sync schedule endpoints
type ScheduleHandler struct {
	BaseHandler
	schedules ScheduleManager
	now       func() time.Time
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(schedules ScheduleManager) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, now: time.Now}
}

// UpsertScheduleRequest configures the schedule of a connector and entity type
//
//	@Description	Request body for scheduling incremental runs
type UpsertScheduleRequest struct {
	ConnectorID string `json:"connector_id" binding:"required,uuid" example:"3f0e2a0c-8a1f-4b8e-9d8a-1c2b3d4e5f60"`
	EntityType  string `json:"entity_type" binding:"required,entity_type" example:"order"`
	CronExpr    string `json:"cron" binding:"required,max=100" example:"*/15 * * * *"`
	Timezone    string `json:"timezone" binding:"omitempty,timezone" example:"Europe/Berlin"`
	Enabled     *bool  `json:"enabled" example:"true"`
}

// Upsert godoc
// @ID           upsertSchedule
//
//	@Summary		Schedule incremental runs
//	@Description	Creates or replaces the schedule of a connector and entity type
//	@Tags			schedules
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpsertScheduleRequest	true	"Schedule"
//	@Success		200		{object}	APIResponse[syncapp.ScheduleResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/schedules [put]
func (h *ScheduleHandler) Upsert(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	sched, err := h.schedules.Upsert(c.Request.Context(), tenantID, syncapp.ScheduleCommand{
		ConnectorID: uuid.MustParse(req.ConnectorID),
		EntityType:  integration.EntityType(req.EntityType),
		CronExpr:    req.CronExpr,
		Timezone:    req.Timezone,
		Enabled:     req.Enabled == nil || *req.Enabled,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToScheduleResponse(sched, h.now()))
}

// List godoc
// @ID           listSchedules
//
//	@Summary		List schedules
//	@Tags			schedules
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]syncapp.ScheduleResponse]
//	@Security		BearerAuth
//	@Router			/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	schedules, err := h.schedules.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToScheduleResponses(schedules, h.now()))
}

// Get godoc
// @ID           getSchedule
//
//	@Summary		Get a schedule
//	@Tags			schedules
//	@Produce		json
//	@Param			id	path		string	true	"Schedule ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.ScheduleResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid schedule ID format")
	if !ok {
		return
	}

	sched, err := h.schedules.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToScheduleResponse(sched, h.now()))
}

// Delete godoc
// @ID           deleteSchedule
//
//	@Summary		Delete a schedule
//	@Tags			schedules
//	@Param			id	path	string	true	"Schedule ID"	format(uuid)
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid schedule ID format")
	if !ok {
		return
	}

	if err := h.schedules.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Acknowledge godoc
// @ID           acknowledgeSchedule
//
//	@Summary		Acknowledge schedule failures
//	@Description	Clears the failure streak and lifts a suspension
//	@Tags			schedules
//	@Produce		json
//	@Param			id	path		string	true	"Schedule ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.ScheduleResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/schedules/{id}/acknowledge [post]
func (h *ScheduleHandler) Acknowledge(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid schedule ID format")
	if !ok {
		return
	}

	sched, err := h.schedules.Acknowledge(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToScheduleResponse(sched, h.now()))
}
