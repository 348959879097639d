package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
)

// maxMappingDocumentSize bounds import documents
const maxMappingDocumentSize = 2 << 20

// MappingManager manages field mappings
type MappingManager interface {
	List(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter) ([]integration.FieldMapping, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.FieldMapping, error)
	Create(ctx context.Context, tenantID uuid.UUID, cmd syncapp.MappingCommand) (*integration.FieldMapping, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, name string, fields []integration.FieldMap) (*integration.FieldMapping, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Preview(ctx context.Context, tenantID uuid.UUID, cmd syncapp.PreviewCommand) (*mapping.PreviewResult, error)
	Export(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter, format syncapp.MappingFormat) ([]byte, error)
	Import(ctx context.Context, tenantID uuid.UUID, data []byte, format syncapp.MappingFormat) (*syncapp.ImportResult, error)
}

// MappingHandler handles field mapping endpoints
type MappingHandler struct {
	BaseHandler
	mappings MappingManager
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mappings MappingManager) *MappingHandler {
	return &MappingHandler{mappings: mappings}
}

// CreateMappingRequest creates a field mapping for a system pair and entity type
//
//	@Description	Request body for creating a field mapping
type CreateMappingRequest struct {
	Name         string                 `json:"name" binding:"required,min=1,max=100" example:"Storefront customers"`
	SourceSystem string                 `json:"source_system" binding:"required,system_code" example:"storefront"`
	TargetSystem string                 `json:"target_system" binding:"required,system_code,nefield=SourceSystem" example:"local"`
	EntityType   string                 `json:"entity_type" binding:"required,entity_type" example:"customer"`
	Fields       []integration.FieldMap `json:"fields" binding:"required,min=1"`
}

// UpdateMappingRequest replaces the name and field list of a mapping
//
//	@Description	Request body for updating a field mapping
type UpdateMappingRequest struct {
	Name   string                 `json:"name" binding:"required,min=1,max=100"`
	Fields []integration.FieldMap `json:"fields" binding:"required,min=1"`
}

// PreviewMappingRequest applies a stored or draft mapping to sample data
//
//	@Description	Request body for previewing a mapping. Set mapping_id or the draft fields.
type PreviewMappingRequest struct {
	MappingID    *string                `json:"mapping_id" binding:"omitempty,uuid"`
	SourceSystem string                 `json:"source_system" binding:"omitempty,system_code"`
	TargetSystem string                 `json:"target_system" binding:"omitempty,system_code"`
	EntityType   string                 `json:"entity_type" binding:"omitempty,entity_type"`
	Fields       []integration.FieldMap `json:"fields" binding:"required_without=MappingID"`
	Sample       map[string]any         `json:"sample" binding:"required"`
}

// MappingFilterQuery narrows list and export
type MappingFilterQuery struct {
	SourceSystem string `form:"source_system" binding:"omitempty,system_code"`
	TargetSystem string `form:"target_system" binding:"omitempty,system_code"`
	EntityType   string `form:"entity_type" binding:"omitempty,entity_type"`
}

func (q MappingFilterQuery) filter() integration.FieldMappingFilter {
	var f integration.FieldMappingFilter
	if q.SourceSystem != "" {
		s := integration.SystemCode(q.SourceSystem)
		f.SourceSystem = &s
	}
	if q.TargetSystem != "" {
		t := integration.SystemCode(q.TargetSystem)
		f.TargetSystem = &t
	}
	if q.EntityType != "" {
		e := integration.EntityType(q.EntityType)
		f.EntityType = &e
	}
	return f
}

// formatParam reads ?format=, defaulting to JSON
func (h *MappingHandler) formatParam(c *gin.Context) (syncapp.MappingFormat, bool) {
	format := syncapp.MappingFormat(strings.ToLower(c.DefaultQuery("format", string(syncapp.MappingFormatJSON))))
	if format == "yml" {
		format = syncapp.MappingFormatYAML
	}
	if !format.IsValid() {
		h.BadRequest(c, "format must be json or yaml")
		return "", false
	}
	return format, true
}

// List godoc
// @ID           listMappings
//
//	@Summary		List field mappings
//	@Tags			mappings
//	@Produce		json
//	@Param			source_system	query		string	false	"Source system"
//	@Param			target_system	query		string	false	"Target system"
//	@Param			entity_type		query		string	false	"Entity type"
//	@Success		200				{object}	APIResponse[[]syncapp.FieldMappingResponse]
//	@Security		BearerAuth
//	@Router			/mappings [get]
func (h *MappingHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q MappingFilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	mappings, err := h.mappings.List(c.Request.Context(), tenantID, q.filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToFieldMappingResponses(mappings))
}

// Get godoc
// @ID           getMapping
//
//	@Summary		Get a field mapping
//	@Tags			mappings
//	@Produce		json
//	@Param			id	path		string	true	"Mapping ID"	format(uuid)
//	@Success		200	{object}	APIResponse[syncapp.FieldMappingResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mappings/{id} [get]
func (h *MappingHandler) Get(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid mapping ID format")
	if !ok {
		return
	}

	m, err := h.mappings.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToFieldMappingResponse(m))
}

// Create godoc
// @ID           createMapping
//
//	@Summary		Create a field mapping
//	@Tags			mappings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateMappingRequest	true	"Mapping"
//	@Success		201		{object}	APIResponse[syncapp.FieldMappingResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mappings [post]
func (h *MappingHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	m, err := h.mappings.Create(c.Request.Context(), tenantID, syncapp.MappingCommand{
		Name:         req.Name,
		SourceSystem: integration.SystemCode(req.SourceSystem),
		TargetSystem: integration.SystemCode(req.TargetSystem),
		EntityType:   integration.EntityType(req.EntityType),
		Fields:       req.Fields,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, syncapp.ToFieldMappingResponse(m))
}

// Update godoc
// @ID           updateMapping
//
//	@Summary		Update a field mapping
//	@Tags			mappings
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Mapping ID"	format(uuid)
//	@Param			request	body		UpdateMappingRequest	true	"Mapping"
//	@Success		200		{object}	APIResponse[syncapp.FieldMappingResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mappings/{id} [put]
func (h *MappingHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid mapping ID format")
	if !ok {
		return
	}
	var req UpdateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	m, err := h.mappings.Update(c.Request.Context(), tenantID, id, req.Name, req.Fields)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, syncapp.ToFieldMappingResponse(m))
}

// Delete godoc
// @ID           deleteMapping
//
//	@Summary		Delete a field mapping
//	@Tags			mappings
//	@Param			id	path	string	true	"Mapping ID"	format(uuid)
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mappings/{id} [delete]
func (h *MappingHandler) Delete(c *gin.Context) {
	tenantID, id, ok := h.tenantAndID(c, "Invalid mapping ID format")
	if !ok {
		return
	}
	if err := h.mappings.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Preview godoc
// @ID           previewMapping
//
//	@Summary		Preview a mapping against sample data
//	@Description	Returns the transformed sample or the validation errors. Nothing is written.
//	@Tags			mappings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PreviewMappingRequest	true	"Preview request"
//	@Success		200		{object}	APIResponse[mapping.PreviewResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mappings/preview [post]
func (h *MappingHandler) Preview(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req PreviewMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	cmd := syncapp.PreviewCommand{
		SourceSystem: integration.SystemCode(req.SourceSystem),
		TargetSystem: integration.SystemCode(req.TargetSystem),
		EntityType:   integration.EntityType(req.EntityType),
		Fields:       req.Fields,
		Sample:       req.Sample,
	}
	if req.MappingID != nil {
		id := uuid.MustParse(*req.MappingID)
		cmd.MappingID = &id
	}

	res, err := h.mappings.Preview(c.Request.Context(), tenantID, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// Export godoc
// @ID           exportMappings
//
//	@Summary		Export field mappings
//	@Description	Renders the tenant's mappings as a JSON or YAML document
//	@Tags			mappings
//	@Produce		json
//	@Produce		application/yaml
//	@Param			format			query	string	false	"Document format"	Enums(json, yaml)	default(json)
//	@Param			source_system	query	string	false	"Source system"
//	@Param			target_system	query	string	false	"Target system"
//	@Param			entity_type		query	string	false	"Entity type"
//	@Success		200				{file}	file
//	@Security		BearerAuth
//	@Router			/mappings/export [get]
func (h *MappingHandler) Export(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	format, ok := h.formatParam(c)
	if !ok {
		return
	}
	var q MappingFilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	data, err := h.mappings.Export(c.Request.Context(), tenantID, q.filter(), format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	contentType := "application/json"
	if format == syncapp.MappingFormatYAML {
		contentType = "application/yaml"
	}
	c.Header("Content-Disposition", `attachment; filename="mappings.`+string(format)+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// Import godoc
// @ID           importMappings
//
//	@Summary		Import field mappings
//	@Description	Validates every mapping in the document and upserts them. Nothing is saved if any mapping is invalid.
//	@Tags			mappings
//	@Accept			json
//	@Accept			application/yaml
//	@Produce		json
//	@Param			format	query		string	false	"Document format"	Enums(json, yaml)	default(json)
//	@Success		200		{object}	APIResponse[syncapp.ImportResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/mappings/import [post]
func (h *MappingHandler) Import(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	format, ok := h.formatParam(c)
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMappingDocumentSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(data) > maxMappingDocumentSize {
		h.Fail(c, dto.ErrCodePayloadTooLarge, "Mapping document is too large")
		return
	}
	if len(data) == 0 {
		h.BadRequest(c, "Mapping document is empty")
		return
	}

	res, err := h.mappings.Import(c.Request.Context(), tenantID, data, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
