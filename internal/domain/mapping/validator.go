package mapping

import (
	"context"
	"fmt"

	"github.com/erp/syncengine/internal/domain/integration"
)

// Validate checks a mapping before it may be used. It rejects malformed
// paths, duplicate source fields, unknown or incomplete transformations and
// platform limits such as the accounting custom-field cap. All problems are
// reported together in one MappingError.
func (e *Engine) Validate(m *integration.FieldMapping) error {
	if m == nil {
		return integration.NewMappingError("mapping is empty")
	}
	var errs []integration.FieldError
	if !m.EntityType.IsValid() {
		errs = append(errs, integration.FieldError{Field: "entity_type", Message: fmt.Sprintf("unknown entity type %q", m.EntityType)})
	}
	if !m.SourceSystem.IsValid() || !m.TargetSystem.IsValid() {
		errs = append(errs, integration.FieldError{Field: "connector", Message: "unknown source or target connector"})
	}
	if len(m.Fields) == 0 {
		errs = append(errs, integration.FieldError{Field: "fields", Message: "at least one field map is required"})
	}
	errs = append(errs, e.validateFields("", m.Fields)...)

	if limit := integration.CustomFieldLimit(m.TargetSystem); limit > 0 {
		custom := 0
		for _, fm := range m.Fields {
			if fm.IsCustomFieldTarget() {
				custom++
			}
		}
		if custom > limit {
			errs = append(errs, integration.FieldError{
				Field:   "fields",
				Message: fmt.Sprintf("%s accepts at most %d custom fields, mapping defines %d", m.TargetSystem, limit, custom),
			})
		}
	}

	if len(errs) > 0 {
		return integration.NewMappingError("field mapping is invalid", errs...)
	}
	return nil
}

func (e *Engine) validateFields(prefix string, fields []integration.FieldMap) []integration.FieldError {
	var errs []integration.FieldError
	seen := make(map[string]int, len(fields))
	for i, fm := range fields {
		at := fmt.Sprintf("%sfields[%d]", prefix, i)
		if _, err := ParsePath(fm.SourcePath); err != nil {
			errs = append(errs, integration.FieldError{Field: at + ".source_path", Message: err.Error()})
		}
		if _, err := ParsePath(fm.TargetPath); err != nil {
			errs = append(errs, integration.FieldError{Field: at + ".target_path", Message: err.Error()})
		}
		if first, dup := seen[fm.SourcePath]; dup {
			errs = append(errs, integration.FieldError{
				Field:   at + ".source_path",
				Message: fmt.Sprintf("duplicate source field %q (also fields[%d])", fm.SourcePath, first),
			})
		} else {
			seen[fm.SourcePath] = i
		}
		for j, t := range fm.Transforms {
			errs = append(errs, e.validateTransform(fmt.Sprintf("%s.transforms[%d]", at, j), t)...)
		}
	}
	return errs
}

func (e *Engine) validateTransform(at string, t integration.Transformation) []integration.FieldError {
	fail := func(msg string) []integration.FieldError {
		return []integration.FieldError{{Field: at, Message: msg}}
	}
	if !t.Kind.IsValid() {
		return fail(fmt.Sprintf("unknown transformation %q", t.Kind))
	}
	if _, ok := e.registry[t.Kind]; !ok {
		return fail(fmt.Sprintf("transformation %q is not registered", t.Kind))
	}
	switch t.Kind {
	case integration.TransformReplace:
		if t.Old == "" {
			return fail("replace needs a non-empty 'old' value")
		}
	case integration.TransformConcat:
		if len(t.Paths) == 0 {
			return fail("concat needs at least one path")
		}
		for _, p := range t.Paths {
			if _, err := ParsePath(p); err != nil {
				return fail(err.Error())
			}
		}
	case integration.TransformDateFormat:
		if t.ToLayout == "" {
			return fail("date_format needs 'to_layout'")
		}
	case integration.TransformLookup:
		if !t.EntityType.IsValid() {
			return fail("lookup needs a valid 'entity_type'")
		}
	case integration.TransformLineItems:
		if len(t.Fields) == 0 {
			return fail("line_items needs nested fields")
		}
		return e.validateFields(at+".", t.Fields)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Preview
// ---------------------------------------------------------------------------

// PreviewResult is the outcome of running a mapping against sample data
type PreviewResult struct {
	Valid  bool                     `json:"valid"`
	Output map[string]any           `json:"output,omitempty"`
	Errors []integration.FieldError `json:"errors,omitempty"`
}

// Preview validates the mapping and, when valid, applies it to the sample.
// It has no side effects: the resolver is only read.
func (e *Engine) Preview(ctx context.Context, in ApplyInput) PreviewResult {
	if err := e.Validate(in.Mapping); err != nil {
		return PreviewResult{Errors: integration.FieldErrorsOf(err)}
	}
	out, err := e.Apply(ctx, in)
	if err != nil {
		fieldErrs := integration.FieldErrorsOf(err)
		if len(fieldErrs) == 0 {
			fieldErrs = []integration.FieldError{{Message: err.Error()}}
		}
		return PreviewResult{Output: out, Errors: fieldErrs}
	}
	return PreviewResult{Valid: true, Output: out}
}
