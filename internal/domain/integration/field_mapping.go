package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Transformations
// ---------------------------------------------------------------------------

// TransformKind is the closed set of transformation functions a field map may use
type TransformKind string

const (
	TransformUppercase  TransformKind = "uppercase"
	TransformLowercase  TransformKind = "lowercase"
	TransformTitle      TransformKind = "title"
	TransformTrim       TransformKind = "trim"
	TransformReplace    TransformKind = "replace"
	TransformConcat     TransformKind = "concat"
	TransformSplit      TransformKind = "split"
	TransformDateFormat TransformKind = "date_format"
	TransformLookup     TransformKind = "lookup"
	TransformLineItems  TransformKind = "line_items"
)

// IsValid returns true if the kind is known
func (k TransformKind) IsValid() bool {
	switch k {
	case TransformUppercase, TransformLowercase, TransformTitle, TransformTrim,
		TransformReplace, TransformConcat, TransformSplit, TransformDateFormat,
		TransformLookup, TransformLineItems:
		return true
	default:
		return false
	}
}

// Transformation is one step of a transformation chain. Only the parameters
// relevant to Kind are read.
type Transformation struct {
	Kind TransformKind `json:"kind" yaml:"kind"`
	// replace
	Old string `json:"old,omitempty" yaml:"old,omitempty"`
	New string `json:"new,omitempty" yaml:"new,omitempty"`
	// concat: extra source paths appended to the value; split: separator
	Paths     []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	Separator string   `json:"separator,omitempty" yaml:"separator,omitempty"`
	// split: element to keep (all elements when nil)
	Index *int `json:"index,omitempty" yaml:"index,omitempty"`
	// date_format
	FromLayout string `json:"from_layout,omitempty" yaml:"from_layout,omitempty"`
	ToLayout   string `json:"to_layout,omitempty" yaml:"to_layout,omitempty"`
	// lookup: entity type whose ID mapping resolves the value
	EntityType EntityType `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	// line_items: field maps applied to each element of an array
	Fields []FieldMap `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ---------------------------------------------------------------------------
// FieldMapping
// ---------------------------------------------------------------------------

// FieldMap maps one source path to one target path.
// Paths use dot notation for nesting and "[]" for collections, e.g. "line_items[].sku".
type FieldMap struct {
	SourcePath string           `json:"source_path" yaml:"source_path"`
	TargetPath string           `json:"target_path" yaml:"target_path"`
	Transforms []Transformation `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Default    any              `json:"default,omitempty" yaml:"default,omitempty"`
	Required   bool             `json:"required,omitempty" yaml:"required,omitempty"`
}

// IsCustomFieldTarget reports whether the field map writes a platform custom field
func (f FieldMap) IsCustomFieldTarget() bool {
	return IsCustomFieldPath(f.TargetPath)
}

// IsCustomFieldPath reports whether a path addresses the custom_fields collection
func IsCustomFieldPath(path string) bool {
	return path == "custom_fields" || strings.HasPrefix(path, "custom_fields.")
}

// CustomFieldLimit returns the maximum number of custom-field targets a system
// accepts, or 0 when unlimited.
func CustomFieldLimit(system SystemCode) int {
	if system == SystemAccounting {
		return 3
	}
	return 0
}

// FieldMapping is an ordered list of field maps from one system to another
// for one entity type. It is versioned implicitly by UpdatedAt.
type FieldMapping struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	SourceSystem SystemCode
	TargetSystem SystemCode
	EntityType   EntityType
	Fields       []FieldMap
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewFieldMapping creates a field mapping
func NewFieldMapping(tenantID uuid.UUID, name string, source, target SystemCode, entityType EntityType, fields []FieldMap) (*FieldMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !source.IsValid() || !target.IsValid() {
		return nil, ErrInvalidSystemCode
	}
	if !entityType.IsValid() {
		return nil, ErrInvalidEntityType
	}
	now := time.Now()
	return &FieldMapping{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		SourceSystem: source,
		TargetSystem: target,
		EntityType:   entityType,
		Fields:       fields,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Replace swaps the field list and bumps the version timestamp
func (m *FieldMapping) Replace(name string, fields []FieldMap) {
	if name != "" {
		m.Name = name
	}
	m.Fields = fields
	m.UpdatedAt = time.Now()
}

// Version returns the implicit version of the mapping
func (m *FieldMapping) Version() int64 {
	return m.UpdatedAt.UnixMilli()
}

// FieldMappingFilter filters mapping listings
type FieldMappingFilter struct {
	SourceSystem *SystemCode
	TargetSystem *SystemCode
	EntityType   *EntityType
}

// FieldMappingRepository persists field mappings
type FieldMappingRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FieldMapping, error)
	FindFor(ctx context.Context, tenantID uuid.UUID, source, target SystemCode, entityType EntityType) (*FieldMapping, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter FieldMappingFilter) ([]FieldMapping, error)
	Save(ctx context.Context, m *FieldMapping) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
