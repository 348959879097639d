package integration

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
)

//go:embed mapping_schema.json
var mappingSchemaJSON []byte

const mappingSchemaURL = "mapping_schema.json"

// MappingFormat is the serialization of an import or export document
type MappingFormat string

const (
	MappingFormatJSON MappingFormat = "json"
	MappingFormatYAML MappingFormat = "yaml"
)

// IsValid returns true if the format is supported
func (f MappingFormat) IsValid() bool {
	return f == MappingFormatJSON || f == MappingFormatYAML
}

// MappingDocument is the portable form of a set of field mappings
type MappingDocument struct {
	Version  int                  `json:"version" yaml:"version"`
	Mappings []MappingDocumentRow `json:"mappings" yaml:"mappings"`
}

// MappingDocumentRow is one field mapping in a MappingDocument
type MappingDocumentRow struct {
	Name         string                 `json:"name,omitempty" yaml:"name,omitempty"`
	SourceSystem integration.SystemCode `json:"source_system" yaml:"source_system"`
	TargetSystem integration.SystemCode `json:"target_system" yaml:"target_system"`
	EntityType   integration.EntityType `json:"entity_type" yaml:"entity_type"`
	Fields       []integration.FieldMap `json:"fields" yaml:"fields"`
}

// MappingCommand creates or replaces a field mapping
type MappingCommand struct {
	Name         string
	SourceSystem integration.SystemCode
	TargetSystem integration.SystemCode
	EntityType   integration.EntityType
	Fields       []integration.FieldMap
}

// ImportResult reports what an import changed
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// MappingService manages field mappings
type MappingService struct {
	repo     integration.FieldMappingRepository
	engine   *mapping.Engine
	idMapper *IDMapper
	schema   *jsonschema.Schema
	logger   *zap.Logger
}

// NewMappingService creates a MappingService
func NewMappingService(repo integration.FieldMappingRepository, engine *mapping.Engine, idMapper *IDMapper, logger *zap.Logger) (*MappingService, error) {
	schema, err := compileMappingSchema()
	if err != nil {
		return nil, err
	}
	if engine == nil {
		engine = mapping.NewEngine(nil)
	}
	return &MappingService{
		repo:     repo,
		engine:   engine,
		idMapper: idMapper,
		schema:   schema,
		logger:   logger,
	}, nil
}

func compileMappingSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(mappingSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse mapping schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(mappingSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add mapping schema: %w", err)
	}
	return c.Compile(mappingSchemaURL)
}

// ---------------------------------------------------------------------------
// CRUD
// ---------------------------------------------------------------------------

// List returns mappings matching the filter
func (s *MappingService) List(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter) ([]integration.FieldMapping, error) {
	return s.repo.FindAll(ctx, tenantID, filter)
}

// Get returns one mapping
func (s *MappingService) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.FieldMapping, error) {
	return s.repo.FindByID(ctx, tenantID, id)
}

// Create validates and stores a new mapping. Only one mapping may exist per
// system pair and entity type.
func (s *MappingService) Create(ctx context.Context, tenantID uuid.UUID, cmd MappingCommand) (*integration.FieldMapping, error) {
	m, err := integration.NewFieldMapping(tenantID, cmd.Name, cmd.SourceSystem, cmd.TargetSystem, cmd.EntityType, cmd.Fields)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Validate(m); err != nil {
		return nil, err
	}
	_, err = s.repo.FindFor(ctx, tenantID, cmd.SourceSystem, cmd.TargetSystem, cmd.EntityType)
	if err == nil {
		return nil, integration.ErrMappingExists
	}
	if !errors.Is(err, integration.ErrMappingNotFound) {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("Field mapping created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("mapping_id", m.ID.String()),
		zap.String("source_system", string(m.SourceSystem)),
		zap.String("target_system", string(m.TargetSystem)),
		zap.String("entity_type", string(m.EntityType)),
		zap.Int("fields", len(m.Fields)),
	)
	return m, nil
}

// Update replaces the field list of a mapping. The mapping keeps its system
// pair; the new version takes effect for runs started afterwards.
func (s *MappingService) Update(ctx context.Context, tenantID, id uuid.UUID, name string, fields []integration.FieldMap) (*integration.FieldMapping, error) {
	m, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	candidate := *m
	candidate.Replace(name, fields)
	if err := s.engine.Validate(&candidate); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, &candidate); err != nil {
		return nil, err
	}
	s.logger.Info("Field mapping updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("mapping_id", id.String()),
		zap.Int64("version", candidate.Version()),
	)
	return &candidate, nil
}

// Delete removes a mapping
func (s *MappingService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}

// ---------------------------------------------------------------------------
// Preview
// ---------------------------------------------------------------------------

// PreviewCommand runs a mapping against sample data. Either MappingID names a
// stored mapping or Fields carries an unsaved one.
type PreviewCommand struct {
	MappingID    *uuid.UUID
	SourceSystem integration.SystemCode
	TargetSystem integration.SystemCode
	EntityType   integration.EntityType
	Fields       []integration.FieldMap
	Sample       map[string]any
}

// Preview reports the transformed sample or the validation errors. Nothing is
// written: ID lookups only read existing correlations.
func (s *MappingService) Preview(ctx context.Context, tenantID uuid.UUID, cmd PreviewCommand) (*mapping.PreviewResult, error) {
	var m *integration.FieldMapping
	if cmd.MappingID != nil {
		stored, err := s.repo.FindByID(ctx, tenantID, *cmd.MappingID)
		if err != nil {
			return nil, err
		}
		m = stored
	} else {
		draft, err := integration.NewFieldMapping(tenantID, "preview", cmd.SourceSystem, cmd.TargetSystem, cmd.EntityType, cmd.Fields)
		if err != nil {
			return nil, err
		}
		m = draft
	}
	if cmd.Sample == nil {
		cmd.Sample = map[string]any{}
	}
	var resolver mapping.IDResolver
	if s.idMapper != nil {
		resolver = s.idMapper
	}
	res := s.engine.Preview(ctx, mapping.ApplyInput{
		TenantID: tenantID,
		Mapping:  m,
		Document: cmd.Sample,
		Resolver: resolver,
	})
	return &res, nil
}

// ---------------------------------------------------------------------------
// Import / export
// ---------------------------------------------------------------------------

// Export renders the tenant's mappings as a document
func (s *MappingService) Export(ctx context.Context, tenantID uuid.UUID, filter integration.FieldMappingFilter, format MappingFormat) ([]byte, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("unsupported mapping format %q", format)
	}
	rows, err := s.repo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	doc := MappingDocument{Version: 1, Mappings: make([]MappingDocumentRow, 0, len(rows))}
	for _, m := range rows {
		doc.Mappings = append(doc.Mappings, MappingDocumentRow{
			Name:         m.Name,
			SourceSystem: m.SourceSystem,
			TargetSystem: m.TargetSystem,
			EntityType:   m.EntityType,
			Fields:       m.Fields,
		})
	}
	if format == MappingFormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import validates a document and upserts its mappings. Nothing is saved
// unless every mapping in the document is valid.
func (s *MappingService) Import(ctx context.Context, tenantID uuid.UUID, data []byte, format MappingFormat) (*ImportResult, error) {
	doc, err := s.decodeDocument(data, format)
	if err != nil {
		return nil, err
	}

	type pending struct {
		mapping *integration.FieldMapping
		created bool
	}
	toSave := make([]pending, 0, len(doc.Mappings))
	var problems []integration.FieldError
	for i, row := range doc.Mappings {
		prefix := fmt.Sprintf("mappings[%d]", i)
		existing, err := s.repo.FindFor(ctx, tenantID, row.SourceSystem, row.TargetSystem, row.EntityType)
		var m *integration.FieldMapping
		created := false
		switch {
		case err == nil:
			candidate := *existing
			candidate.Replace(row.Name, row.Fields)
			m = &candidate
		case errors.Is(err, integration.ErrMappingNotFound):
			m, err = integration.NewFieldMapping(tenantID, row.Name, row.SourceSystem, row.TargetSystem, row.EntityType, row.Fields)
			if err != nil {
				problems = append(problems, integration.FieldError{Field: prefix, Message: err.Error()})
				continue
			}
			created = true
		default:
			return nil, err
		}
		if err := s.engine.Validate(m); err != nil {
			for _, fe := range integration.FieldErrorsOf(err) {
				problems = append(problems, integration.FieldError{Field: prefix + "." + fe.Field, Message: fe.Message})
			}
			continue
		}
		toSave = append(toSave, pending{mapping: m, created: created})
	}
	if len(problems) > 0 {
		return nil, integration.NewMappingError("import rejected", problems...)
	}

	res := &ImportResult{}
	for _, p := range toSave {
		if err := s.repo.Save(ctx, p.mapping); err != nil {
			return res, err
		}
		if p.created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	s.logger.Info("Field mappings imported",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
	)
	return res, nil
}

// decodeDocument checks the raw document against the schema before decoding
func (s *MappingService) decodeDocument(data []byte, format MappingFormat) (*MappingDocument, error) {
	if !format.IsValid() {
		return nil, integration.NewValidationError(fmt.Sprintf("unsupported mapping format %q", format))
	}
	jsonData := data
	if format == MappingFormatYAML {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, integration.NewValidationError("document is not valid YAML", integration.FieldError{Field: "document", Message: err.Error()})
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, integration.NewValidationError("document cannot be represented as JSON", integration.FieldError{Field: "document", Message: err.Error()})
		}
		jsonData = converted
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, integration.NewValidationError("document is not valid JSON", integration.FieldError{Field: "document", Message: err.Error()})
	}
	if err := s.schema.Validate(inst); err != nil {
		return nil, integration.NewValidationError("document does not match the mapping schema", schemaFieldErrors(err)...)
	}

	var doc MappingDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, integration.NewValidationError("document cannot be decoded", integration.FieldError{Field: "document", Message: err.Error()})
	}
	return &doc, nil
}

// schemaFieldErrors flattens a schema validation error to its leaf causes
func schemaFieldErrors(err error) []integration.FieldError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []integration.FieldError{{Field: "document", Message: err.Error()}}
	}
	p := message.NewPrinter(language.English)
	var out []integration.FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, integration.FieldError{
				Field:   "/" + strings.Join(e.InstanceLocation, "/"),
				Message: e.ErrorKind.LocalizedString(p),
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
