package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/erp/syncengine/internal/domain/integration"
)

var errResolve = errors.New("mapping: id resolution failed")

// IDResolver resolves a foreign key through the ID mapping table. It must not
// write anything.
type IDResolver interface {
	ResolveID(ctx context.Context, tenantID uuid.UUID, entityType integration.EntityType, fromSystem integration.SystemCode, fromID string, toSystem integration.SystemCode) (string, bool, error)
}

// Context is the read-only context handed to transformation functions
type Context struct {
	Ctx          context.Context
	TenantID     uuid.UUID
	SourceSystem integration.SystemCode
	TargetSystem integration.SystemCode
	Resolver     IDResolver
	// Document is the whole source document, for transforms that read other paths
	Document map[string]any

	engine *Engine
}

// TransformFunc is a pure function of a value, its parameters and the context
type TransformFunc func(value any, t integration.Transformation, mc *Context) (any, error)

// Registry maps each transformation kind to its function
type Registry map[integration.TransformKind]TransformFunc

// DefaultRegistry returns the built-in transformation set
func DefaultRegistry() Registry {
	return Registry{
		integration.TransformUppercase:  eachString(func(s string) string { return cases.Upper(language.Und).String(s) }),
		integration.TransformLowercase:  eachString(func(s string) string { return cases.Lower(language.Und).String(s) }),
		integration.TransformTitle:      eachString(func(s string) string { return cases.Title(language.Und).String(s) }),
		integration.TransformTrim:       eachString(strings.TrimSpace),
		integration.TransformReplace:    replaceTransform,
		integration.TransformConcat:     concatTransform,
		integration.TransformSplit:      splitTransform,
		integration.TransformDateFormat: dateFormatTransform,
		integration.TransformLookup:     lookupTransform,
		integration.TransformLineItems:  lineItemsTransform,
	}
}

// eachString lifts a string function over scalars and lists.
// Casers are stateful, so callers build one per invocation.
func eachString(fn func(string) string) TransformFunc {
	return func(value any, _ integration.Transformation, _ *Context) (any, error) {
		return mapEach(value, func(s string) (any, error) { return fn(s), nil })
	}
}

func mapEach(value any, fn func(string) (any, error)) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := mapEach(item, fn)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		return fn(s)
	}
}

func replaceTransform(value any, t integration.Transformation, _ *Context) (any, error) {
	return mapEach(value, func(s string) (any, error) {
		return strings.ReplaceAll(s, t.Old, t.New), nil
	})
}

func concatTransform(value any, t integration.Transformation, mc *Context) (any, error) {
	parts := make([]string, 0, len(t.Paths)+1)
	if value != nil {
		s, err := toString(value)
		if err != nil {
			return nil, err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, raw := range t.Paths {
		p, err := ParsePath(raw)
		if err != nil {
			return nil, err
		}
		v, ok := p.Get(mc.Document)
		if !ok || v == nil {
			continue
		}
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return strings.Join(parts, t.Separator), nil
}

func splitTransform(value any, t integration.Transformation, _ *Context) (any, error) {
	if value == nil {
		return nil, nil
	}
	s, err := toString(value)
	if err != nil {
		return nil, err
	}
	sep := t.Separator
	if sep == "" {
		sep = ","
	}
	pieces := strings.Split(s, sep)
	if t.Index != nil {
		i := *t.Index
		if i < 0 {
			i = len(pieces) + i
		}
		if i < 0 || i >= len(pieces) {
			return nil, nil
		}
		return strings.TrimSpace(pieces[i]), nil
	}
	out := make([]any, len(pieces))
	for i, p := range pieces {
		out[i] = strings.TrimSpace(p)
	}
	return out, nil
}

var layoutAliases = map[string]string{
	"":         time.RFC3339,
	"rfc3339":  time.RFC3339,
	"date":     time.DateOnly,
	"datetime": time.DateTime,
	"unix":     "unix",
}

func resolveLayout(l string) string {
	if alias, ok := layoutAliases[strings.ToLower(l)]; ok {
		return alias
	}
	return l
}

func dateFormatTransform(value any, t integration.Transformation, _ *Context) (any, error) {
	from := resolveLayout(t.FromLayout)
	to := resolveLayout(t.ToLayout)
	return mapEach(value, func(s string) (any, error) {
		if s == "" {
			return nil, nil
		}
		var ts time.Time
		if from == "unix" {
			secs, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("date_format: %q is not a unix timestamp", s)
			}
			ts = time.Unix(secs, 0).UTC()
		} else {
			parsed, err := time.Parse(from, s)
			if err != nil {
				return nil, fmt.Errorf("date_format: %q does not match %q", s, from)
			}
			ts = parsed
		}
		if to == "unix" {
			return ts.Unix(), nil
		}
		return ts.Format(to), nil
	})
}

func lookupTransform(value any, t integration.Transformation, mc *Context) (any, error) {
	if mc.Resolver == nil {
		return nil, fmt.Errorf("lookup: no id resolver available")
	}
	return mapEach(value, func(id string) (any, error) {
		if id == "" {
			return nil, nil
		}
		target, found, err := mc.Resolver.ResolveID(mc.ctx(), mc.TenantID, t.EntityType, mc.SourceSystem, id, mc.TargetSystem)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errResolve, err)
		}
		if !found {
			return nil, integration.NewValidationError("unresolved reference",
				integration.FieldError{Message: fmt.Sprintf("no %s %s mapped for %q", mc.TargetSystem, t.EntityType, id)})
		}
		return target, nil
	})
}

func lineItemsTransform(value any, t integration.Transformation, mc *Context) (any, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("line_items: expected a list, got %T", value)
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		elem, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("line_items: element %d is %T, not an object", i, item)
		}
		mapped, fieldErrs, err := mc.engine.applyFields(mc, elem, t.Fields)
		if err != nil {
			return nil, err
		}
		if len(fieldErrs) > 0 {
			for j := range fieldErrs {
				fieldErrs[j].Field = fmt.Sprintf("[%d].%s", i, fieldErrs[j].Field)
			}
			return nil, integration.NewValidationError("line item mapping failed", fieldErrs...)
		}
		out = append(out, mapped)
	}
	return out, nil
}

func (mc *Context) ctx() context.Context {
	if mc.Ctx == nil {
		return context.Background()
	}
	return mc.Ctx
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("cannot use %T as text", v)
	}
}
