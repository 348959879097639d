// Package mapping implements the field mapping engine: dot/bracket paths,
// a registry of pure transformation functions, mapping validation and a
// side-effect-free preview.
package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/domain/integration"
)

// Engine applies field mappings to documents
type Engine struct {
	registry Registry
}

// NewEngine creates an engine. A nil registry uses DefaultRegistry.
func NewEngine(registry Registry) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Engine{registry: registry}
}

// Registry returns the engine's transformation registry
func (e *Engine) Registry() Registry {
	return e.registry
}

// ApplyInput is the input of one mapping application
type ApplyInput struct {
	TenantID uuid.UUID
	Mapping  *integration.FieldMapping
	Document map[string]any
	Resolver IDResolver
}

// Apply maps a source document to a target document. Missing values for
// required fields are collected and returned together as a ValidationError.
func (e *Engine) Apply(ctx context.Context, in ApplyInput) (map[string]any, error) {
	if in.Mapping == nil {
		return nil, integration.ErrMappingNotFound
	}
	mc := &Context{
		Ctx:          ctx,
		TenantID:     in.TenantID,
		SourceSystem: in.Mapping.SourceSystem,
		TargetSystem: in.Mapping.TargetSystem,
		Resolver:     in.Resolver,
		Document:     in.Document,
		engine:       e,
	}
	out, fieldErrs, err := e.applyFields(mc, in.Document, in.Mapping.Fields)
	if err != nil {
		return nil, err
	}
	if len(fieldErrs) > 0 {
		return out, integration.NewValidationError("mapped payload is incomplete", fieldErrs...)
	}
	return out, nil
}

// applyFields maps one document. Field-level problems are collected; errors
// from the resolver abort the whole application.
func (e *Engine) applyFields(parent *Context, doc map[string]any, fields []integration.FieldMap) (map[string]any, []integration.FieldError, error) {
	mc := *parent
	mc.Document = doc

	out := make(map[string]any)
	var fieldErrs []integration.FieldError
	for _, fm := range fields {
		value, err := e.applyField(&mc, doc, fm)
		if errors.Is(err, errResolve) {
			return nil, nil, err
		}
		if err != nil {
			fieldErrs = append(fieldErrs, toFieldErrors(fm.TargetPath, err)...)
			continue
		}
		if isEmpty(value) {
			if fm.Required {
				fieldErrs = append(fieldErrs, integration.FieldError{
					Field:   fm.TargetPath,
					Message: fmt.Sprintf("required value missing (source %q)", fm.SourcePath),
				})
			}
			continue
		}
		target, err := ParsePath(fm.TargetPath)
		if err != nil {
			fieldErrs = append(fieldErrs, integration.FieldError{Field: fm.TargetPath, Message: err.Error()})
			continue
		}
		if err := target.Set(out, value); err != nil {
			fieldErrs = append(fieldErrs, integration.FieldError{Field: fm.TargetPath, Message: err.Error()})
		}
	}
	return out, fieldErrs, nil
}

func (e *Engine) applyField(mc *Context, doc map[string]any, fm integration.FieldMap) (any, error) {
	source, err := ParsePath(fm.SourcePath)
	if err != nil {
		return nil, err
	}
	value, _ := source.Get(doc)
	for _, t := range fm.Transforms {
		fn, ok := e.registry[t.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown transformation %q", t.Kind)
		}
		value, err = fn(value, t, mc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Kind, err)
		}
	}
	if isEmpty(value) && fm.Default != nil {
		value = fm.Default
	}
	return value, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		for _, item := range t {
			if !isEmpty(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toFieldErrors(field string, err error) []integration.FieldError {
	var se *integration.SyncError
	if errors.As(err, &se) && len(se.FieldErrors) > 0 {
		out := make([]integration.FieldError, 0, len(se.FieldErrors))
		for _, fe := range se.FieldErrors {
			out = append(out, integration.FieldError{Field: field + fe.Field, Message: fe.Message})
		}
		return out
	}
	return []integration.FieldError{{Field: field, Message: err.Error()}}
}
