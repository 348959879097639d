package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/syncengine/internal/domain/integration"
)

type stubResolver struct {
	ids   map[string]string
	calls int
	err   error
}

func (r *stubResolver) ResolveID(_ context.Context, _ uuid.UUID, entityType integration.EntityType, from integration.SystemCode, fromID string, to integration.SystemCode) (string, bool, error) {
	r.calls++
	if r.err != nil {
		return "", false, r.err
	}
	id, ok := r.ids[string(entityType)+":"+string(from)+":"+fromID+":"+string(to)]
	return id, ok, nil
}

func orderToInvoiceMapping(t *testing.T) *integration.FieldMapping {
	t.Helper()
	m, err := integration.NewFieldMapping(uuid.New(), "orders to invoices",
		integration.SystemStorefront, integration.SystemAccounting, integration.EntityTypeOrder,
		[]integration.FieldMap{
			{SourcePath: "number", TargetPath: "reference", Required: true},
			{SourcePath: "customer_id", TargetPath: "contact.id", Required: true, Transforms: []integration.Transformation{
				{Kind: integration.TransformLookup, EntityType: integration.EntityTypeCustomer},
			}},
			{SourcePath: "currency", TargetPath: "currency_code", Default: "USD"},
			{SourcePath: "placed_at", TargetPath: "date", Transforms: []integration.Transformation{
				{Kind: integration.TransformDateFormat, ToLayout: "date"},
			}},
			{SourcePath: "line_items", TargetPath: "lines", Transforms: []integration.Transformation{
				{Kind: integration.TransformLineItems, Fields: []integration.FieldMap{
					{SourcePath: "sku", TargetPath: "item_code", Required: true},
					{SourcePath: "qty", TargetPath: "quantity"},
				}},
			}},
		})
	require.NoError(t, err)
	return m
}

func sampleOrderDocument() map[string]any {
	return map[string]any{
		"number":      "1001",
		"customer_id": "C-77",
		"placed_at":   "2026-03-01T10:00:00Z",
		"line_items": []any{
			map[string]any{"sku": "X1", "qty": float64(2)},
			map[string]any{"sku": "Y2", "qty": float64(1)},
		},
	}
}

func TestEngine_Apply_OrderWithLineItems(t *testing.T) {
	engine := NewEngine(nil)
	resolver := &stubResolver{ids: map[string]string{"customer:storefront:C-77:accounting": "ACC-5"}}
	m := orderToInvoiceMapping(t)

	out, err := engine.Apply(context.Background(), ApplyInput{
		TenantID: m.TenantID,
		Mapping:  m,
		Document: sampleOrderDocument(),
		Resolver: resolver,
	})
	require.NoError(t, err)

	assert.Equal(t, "1001", out["reference"])
	assert.Equal(t, map[string]any{"id": "ACC-5"}, out["contact"])
	assert.Equal(t, "USD", out["currency_code"])
	assert.Equal(t, "2026-03-01", out["date"])
	assert.Equal(t, []any{
		map[string]any{"item_code": "X1", "quantity": float64(2)},
		map[string]any{"item_code": "Y2", "quantity": float64(1)},
	}, out["lines"])
	assert.Equal(t, 1, resolver.calls)
}

func TestEngine_Apply_CollectsFieldErrors(t *testing.T) {
	engine := NewEngine(nil)
	m := orderToInvoiceMapping(t)
	doc := sampleOrderDocument()
	delete(doc, "number")
	doc["line_items"] = []any{map[string]any{"qty": float64(3)}}

	_, err := engine.Apply(context.Background(), ApplyInput{
		TenantID: m.TenantID,
		Mapping:  m,
		Document: doc,
		Resolver: &stubResolver{},
	})
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))

	fields := make([]string, 0)
	for _, fe := range integration.FieldErrorsOf(err) {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "reference")
	assert.Contains(t, fields, "contact.id")
	assert.Contains(t, fields, "lines[0].item_code")
}

func TestEngine_Apply_ResolverErrorIsSurfaced(t *testing.T) {
	engine := NewEngine(nil)
	m := orderToInvoiceMapping(t)
	dbDown := errors.New("db down")
	_, err := engine.Apply(context.Background(), ApplyInput{
		TenantID: m.TenantID,
		Mapping:  m,
		Document: sampleOrderDocument(),
		Resolver: &stubResolver{err: dbDown},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbDown)
	assert.NotEqual(t, integration.ErrorKindValidation, integration.KindOf(err))
}

func TestEngine_Apply_LineItemLookupErrorStopsRun(t *testing.T) {
	m, err := integration.NewFieldMapping(uuid.New(), "orders with product refs",
		integration.SystemStorefront, integration.SystemAccounting, integration.EntityTypeOrder,
		[]integration.FieldMap{
			{SourcePath: "line_items", TargetPath: "lines", Transforms: []integration.Transformation{
				{Kind: integration.TransformLineItems, Fields: []integration.FieldMap{
					{SourcePath: "product_id", TargetPath: "item_id", Transforms: []integration.Transformation{
						{Kind: integration.TransformLookup, EntityType: integration.EntityTypeProduct},
					}},
				}},
			}},
		})
	require.NoError(t, err)

	dbDown := errors.New("db down")
	resolver := &stubResolver{err: dbDown}
	_, err = NewEngine(nil).Apply(context.Background(), ApplyInput{
		TenantID: m.TenantID,
		Mapping:  m,
		Document: map[string]any{"line_items": []any{
			map[string]any{"product_id": "P-1"},
			map[string]any{"product_id": "P-2"},
		}},
		Resolver: resolver,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbDown)
	assert.NotEqual(t, integration.ErrorKindValidation, integration.KindOf(err))
	assert.Equal(t, 1, resolver.calls, "first failure ends the mapping")
}

func TestEngine_Apply_NilMapping(t *testing.T) {
	_, err := NewEngine(nil).Apply(context.Background(), ApplyInput{Document: map[string]any{}})
	assert.ErrorIs(t, err, integration.ErrMappingNotFound)
}

func TestTransforms(t *testing.T) {
	minusOne := -1
	doc := map[string]any{
		"first_name": "  jane ",
		"last_name":  "DOE",
		"full_name":  "Jane Q Doe",
		"tags":       "vip, wholesale ,eu",
		"phone":      "555-123-4567",
		"created":    "1767225600",
	}

	tests := []struct {
		name string
		fm   integration.FieldMap
		want any
	}{
		{
			name: "trim then title",
			fm: integration.FieldMap{SourcePath: "first_name", TargetPath: "out", Transforms: []integration.Transformation{
				{Kind: integration.TransformTrim}, {Kind: integration.TransformTitle},
			}},
			want: "Jane",
		},
		{
			name: "lowercase",
			fm:   integration.FieldMap{SourcePath: "last_name", TargetPath: "out", Transforms: []integration.Transformation{{Kind: integration.TransformLowercase}}},
			want: "doe",
		},
		{
			name: "uppercase",
			fm:   integration.FieldMap{SourcePath: "full_name", TargetPath: "out", Transforms: []integration.Transformation{{Kind: integration.TransformUppercase}}},
			want: "JANE Q DOE",
		},
		{
			name: "replace",
			fm: integration.FieldMap{SourcePath: "phone", TargetPath: "out", Transforms: []integration.Transformation{
				{Kind: integration.TransformReplace, Old: "-", New: ""},
			}},
			want: "5551234567",
		},
		{
			name: "concat with other paths",
			fm: integration.FieldMap{SourcePath: "last_name", TargetPath: "out", Transforms: []integration.Transformation{
				{Kind: integration.TransformConcat, Paths: []string{"phone", "missing"}, Separator: "|"},
			}},
			want: "DOE|555-123-4567",
		},
		{
			name: "split into list",
			fm: integration.FieldMap{SourcePath: "tags", TargetPath: "out", Transforms: []integration.Transformation{
				{Kind: integration.TransformSplit},
			}},
			want: []any{"vip", "wholesale", "eu"},
		},
		{
			name: "split keeps last element",
			fm: integration.FieldMap{SourcePath: "full_name", TargetPath: "out", Transforms: []integration.Transformation{
				{Kind: integration.TransformSplit, Separator: " ", Index: &minusOne},
			}},
			want: "Doe",
		},
		{
			name: "unix to date",
			fm: integration.FieldMap{SourcePath: "created", TargetPath: "out", Transforms: []integration.Transformation{
				{Kind: integration.TransformDateFormat, FromLayout: "unix", ToLayout: "date"},
			}},
			want: "2026-01-01",
		},
		{
			name: "default when absent",
			fm:   integration.FieldMap{SourcePath: "nickname", TargetPath: "out", Default: "n/a"},
			want: "n/a",
		},
	}

	engine := NewEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &integration.FieldMapping{
				SourceSystem: integration.SystemLocal,
				TargetSystem: integration.SystemStorefront,
				EntityType:   integration.EntityTypeCustomer,
				Fields:       []integration.FieldMap{tt.fm},
			}
			out, err := engine.Apply(context.Background(), ApplyInput{Mapping: m, Document: doc})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out["out"])
		})
	}
}

func TestDateFormat_RejectsMismatchedInput(t *testing.T) {
	m := &integration.FieldMapping{
		SourceSystem: integration.SystemLocal,
		TargetSystem: integration.SystemStorefront,
		EntityType:   integration.EntityTypeOrder,
		Fields: []integration.FieldMap{{SourcePath: "placed_at", TargetPath: "date", Transforms: []integration.Transformation{
			{Kind: integration.TransformDateFormat, FromLayout: "date", ToLayout: "rfc3339"},
		}}},
	}
	_, err := NewEngine(nil).Apply(context.Background(), ApplyInput{Mapping: m, Document: map[string]any{"placed_at": "yesterday"}})
	require.Error(t, err)
	assert.Equal(t, "date", integration.FieldErrorsOf(err)[0].Field)
}
