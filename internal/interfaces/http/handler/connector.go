package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
)

// ConnectorManager is the connector configuration use case
type ConnectorManager interface {
	Upsert(ctx context.Context, tenantID, id uuid.UUID, cmd syncapp.ConnectorCommand) (*integration.ConnectorConfig, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.ConnectorConfig, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]integration.ConnectorConfig, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Test(ctx context.Context, tenantID, id uuid.UUID) ([]syncapp.ConnectionCheck, error)
}

// ConnectorHandler handles connector configuration endpoints
type ConnectorHandler struct {
	BaseHandler
	connectors ConnectorManager
}

// NewConnectorHandler creates a new ConnectorHandler
func NewConnectorHandler(connectors ConnectorManager) *ConnectorHandler {
	return &ConnectorHandler{connectors: connectors}
}

// EntityPolicyRequest configures how one entity type is reconciled
//
//	@Description	Per-entity source of truth and conflict strategy
type EntityPolicyRequest struct {
	EntityType    string `json:"entity_type" binding:"required,entity_type" example:"customer"`
	SourceOfTruth string `json:"source_of_truth" binding:"omitempty,system_code" example:"local"`
	Strategy      string `json:"strategy" binding:"omitempty,resolution_strategy" example:"most-recent-wins"`
}

// UpsertConnectorRequest creates or replaces a connector
//
//	@Description	Request body for configuring a connector
type UpsertConnectorRequest struct {
	Name         string                `json:"name" binding:"required,min=1,max=100" example:"Storefront orders"`
	SourceSystem string                `json:"source_system" binding:"required,system_code" example:"storefront"`
	TargetSystem string                `json:"target_system" binding:"required,system_code,nefield=SourceSystem" example:"local"`
	Direction    string                `json:"direction" binding:"omitempty,sync_direction" example:"two_way"`
	Policies     []EntityPolicyRequest `json:"policies" binding:"omitempty,dive"`
	Filters      map[string]string     `json:"filters"`
	Enabled      *bool                 `json:"enabled" example:"true"`
}

// Upsert godoc
// @ID           upsertConnector
//
//	@Summary		Configure a connector
//	@Description	Create the connector with the given ID or replace its configuration
//	@Tags			connectors
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Connector ID"	format(uuid)
//	@Param			request	body		UpsertConnectorRequest	true	"Connector configuration"
//	@Success		200		{object}	APIResponse[syncapp.ConnectorResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/connectors/{id} [put]
func (h *ConnectorHandler) Upsert(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid connector ID format")
	if !ok {
		return
	}

	var req UpsertConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	cmd := syncapp.ConnectorCommand{
		Name:         req.Name,
		SourceSystem: integration.SystemCode(req.SourceSystem),
		TargetSystem: integration.SystemCode(req.TargetSystem),
		Direction:    integration.SyncDirection(req.Direction),
		Filters:      req.Filters,
		Enabled:      req.Enabled == nil || *req.Enabled,
	}
	for _, p := range req.Policies {
		cmd.Policies = append(cmd.Policies, integration.EntityPolicy{
			EntityType:    integration.EntityType(p.EntityType),
			SourceOfTruth: integration.SystemCode(p.SourceOfTruth),
			Strategy:      integration.ResolutionStrategy(p.Strategy),
		})
	}

	cfg, err := h.connectors.Upsert(c.Request.Context(), tenantID, id, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToConnectorResponse(cfg))
}

// Get godoc
// @ID           getConnector
//
//	@Summary		Get a connector
//	@Tags			connectors
//	@Produce		json
//	@Param			id	path		string	true	"Connector ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.ConnectorResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/connectors/{id} [get]
func (h *ConnectorHandler) Get(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid connector ID format")
	if !ok {
		return
	}

	cfg, err := h.connectors.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToConnectorResponse(cfg))
}

// List godoc
// @ID           listConnectors
//
//	@Summary		List connectors
//	@Tags			connectors
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]syncapp.ConnectorResponse]
//	@Security		BearerAuth
//	@Router			/connectors [get]
func (h *ConnectorHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	cfgs, err := h.connectors.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToConnectorResponses(cfgs))
}

// Delete godoc
// @ID           deleteConnector
//
//	@Summary		Delete a connector
//	@Tags			connectors
//	@Param			id	path	string	true	"Connector ID"	format(uuid)
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/connectors/{id} [delete]
func (h *ConnectorHandler) Delete(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid connector ID format")
	if !ok {
		return
	}

	if err := h.connectors.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Test godoc
// @ID           testConnector
//
//	@Summary		Test connector connectivity
//	@Description	Tests both ends of the connector with the stored credentials
//	@Tags			connectors
//	@Produce		json
//	@Param			id	path		string	true	"Connector ID"	format(uuid)
//	@Success		200	{object}	APIResponse[[]syncapp.ConnectionCheck]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/connectors/{id}/test [post]
func (h *ConnectorHandler) Test(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid connector ID format")
	if !ok {
		return
	}

	checks, err := h.connectors.Test(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, checks)
}
