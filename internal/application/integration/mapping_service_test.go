package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

func newTestMappingService(t *testing.T) (*MappingService, *memMappings, *memIDMappings) {
	t.Helper()
	repo := newMemMappings()
	ids := newMemIDMappings()
	svc, err := NewMappingService(repo, nil, NewIDMapper(ids, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	return svc, repo, ids
}

func customerMappingCommand() MappingCommand {
	return MappingCommand{
		Name:         "customers to accounting",
		SourceSystem: integration.SystemLocal,
		TargetSystem: integration.SystemAccounting,
		EntityType:   integration.EntityTypeCustomer,
		Fields: []integration.FieldMap{
			{SourcePath: "email", TargetPath: "EmailAddress", Required: true, Transforms: []integration.Transformation{{Kind: integration.TransformLowercase}}},
			{SourcePath: "first_name", TargetPath: "Name", Transforms: []integration.Transformation{{Kind: integration.TransformConcat, Paths: []string{"last_name"}, Separator: " "}}},
		},
	}
}

func TestMappingService_Create(t *testing.T) {
	svc, repo, _ := newTestMappingService(t)
	tenantID := uuid.New()

	m, err := svc.Create(context.Background(), tenantID, customerMappingCommand())
	require.NoError(t, err)
	assert.Equal(t, integration.SystemAccounting, m.TargetSystem)

	stored, err := repo.FindByID(context.Background(), tenantID, m.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Fields, 2)

	_, err = svc.Create(context.Background(), tenantID, customerMappingCommand())
	assert.ErrorIs(t, err, integration.ErrMappingExists)
}

func TestMappingService_Create_RejectsAccountingCustomFieldOverflow(t *testing.T) {
	svc, repo, _ := newTestMappingService(t)
	tenantID := uuid.New()
	cmd := customerMappingCommand()
	for _, f := range []string{"a", "b", "c", "d"} {
		cmd.Fields = append(cmd.Fields, integration.FieldMap{SourcePath: "custom_fields." + f, TargetPath: "custom_fields." + f})
	}

	_, err := svc.Create(context.Background(), tenantID, cmd)
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindMapping, integration.KindOf(err))
	fieldErrs := integration.FieldErrorsOf(err)
	require.NotEmpty(t, fieldErrs)
	assert.Contains(t, fieldErrs[len(fieldErrs)-1].Message, "at most 3 custom fields")

	all, err := repo.FindAll(context.Background(), tenantID, integration.FieldMappingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMappingService_Update_InvalidKeepsStoredVersion(t *testing.T) {
	svc, repo, _ := newTestMappingService(t)
	tenantID := uuid.New()
	m, err := svc.Create(context.Background(), tenantID, customerMappingCommand())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), tenantID, m.ID, "", []integration.FieldMap{
		{SourcePath: "email", TargetPath: "a..b"},
	})
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindMapping, integration.KindOf(err))

	stored, err := repo.FindByID(context.Background(), tenantID, m.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Fields, 2)

	updated, err := svc.Update(context.Background(), tenantID, m.ID, "renamed", []integration.FieldMap{
		{SourcePath: "email", TargetPath: "EmailAddress"},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Len(t, updated.Fields, 1)
}

func TestMappingService_ExportImportRoundTrip(t *testing.T) {
	for _, format := range []MappingFormat{MappingFormatJSON, MappingFormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			svc, _, _ := newTestMappingService(t)
			tenantA, tenantB := uuid.New(), uuid.New()

			_, err := svc.Create(context.Background(), tenantA, customerMappingCommand())
			require.NoError(t, err)
			index := 0
			_, err = svc.Create(context.Background(), tenantA, MappingCommand{
				Name:         "orders",
				SourceSystem: integration.SystemLocal,
				TargetSystem: integration.SystemStorefront,
				EntityType:   integration.EntityTypeOrder,
				Fields: []integration.FieldMap{
					{SourcePath: "customer_name", TargetPath: "first_name", Transforms: []integration.Transformation{{Kind: integration.TransformSplit, Separator: " ", Index: &index}}},
					{SourcePath: "line_items", TargetPath: "lines", Transforms: []integration.Transformation{{
						Kind:   integration.TransformLineItems,
						Fields: []integration.FieldMap{{SourcePath: "sku", TargetPath: "sku"}, {SourcePath: "qty", TargetPath: "quantity"}},
					}}},
				},
			})
			require.NoError(t, err)

			data, err := svc.Export(context.Background(), tenantA, integration.FieldMappingFilter{}, format)
			require.NoError(t, err)
			assert.Contains(t, string(data), "line_items")

			res, err := svc.Import(context.Background(), tenantB, data, format)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Created)
			assert.Equal(t, 0, res.Updated)

			imported, err := svc.List(context.Background(), tenantB, integration.FieldMappingFilter{})
			require.NoError(t, err)
			require.Len(t, imported, 2)

			// Importing again replaces in place
			res, err = svc.Import(context.Background(), tenantB, data, format)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Created)
			assert.Equal(t, 2, res.Updated)
		})
	}
}

func TestMappingService_Import_SchemaErrors(t *testing.T) {
	svc, repo, _ := newTestMappingService(t)
	tenantID := uuid.New()
	doc := `
version: 1
mappings:
  - source_system: local
    target_system: storefront
    entity_type: customer
    fields:
      - source_path: email
        target_path: email
        transforms:
          - kind: explode
`
	_, err := svc.Import(context.Background(), tenantID, []byte(doc), MappingFormatYAML)
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))

	fieldErrs := integration.FieldErrorsOf(err)
	require.NotEmpty(t, fieldErrs)
	found := false
	for _, fe := range fieldErrs {
		if strings.HasPrefix(fe.Field, "/mappings/0/fields/0/transforms/0") {
			found = true
		}
	}
	assert.True(t, found, "errors point at the offending transform: %v", fieldErrs)

	all, err := repo.FindAll(context.Background(), tenantID, integration.FieldMappingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMappingService_Import_IsAllOrNothing(t *testing.T) {
	svc, repo, _ := newTestMappingService(t)
	tenantID := uuid.New()
	doc := `{
  "version": 1,
  "mappings": [
    {"source_system": "local", "target_system": "storefront", "entity_type": "customer",
     "fields": [{"source_path": "email", "target_path": "email"}]},
    {"source_system": "local", "target_system": "accounting", "entity_type": "customer",
     "fields": [
       {"source_path": "custom_fields.a", "target_path": "custom_fields.a"},
       {"source_path": "custom_fields.b", "target_path": "custom_fields.b"},
       {"source_path": "custom_fields.c", "target_path": "custom_fields.c"},
       {"source_path": "custom_fields.d", "target_path": "custom_fields.d"}
     ]}
  ]
}`
	_, err := svc.Import(context.Background(), tenantID, []byte(doc), MappingFormatJSON)
	require.Error(t, err)
	assert.Equal(t, integration.ErrorKindMapping, integration.KindOf(err))
	fieldErrs := integration.FieldErrorsOf(err)
	require.NotEmpty(t, fieldErrs)
	assert.True(t, strings.HasPrefix(fieldErrs[0].Field, "mappings[1]."))

	all, err := repo.FindAll(context.Background(), tenantID, integration.FieldMappingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "the valid mapping is not saved either")
}

func TestMappingService_Import_RejectsMalformedDocuments(t *testing.T) {
	svc, _, _ := newTestMappingService(t)

	_, err := svc.Import(context.Background(), uuid.New(), []byte(`{"version": 1`), MappingFormatJSON)
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))

	_, err = svc.Import(context.Background(), uuid.New(), []byte("version: [1"), MappingFormatYAML)
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))

	_, err = svc.Import(context.Background(), uuid.New(), []byte(`{}`), "xml")
	assert.Equal(t, integration.ErrorKindValidation, integration.KindOf(err))
}

func TestMappingService_Preview(t *testing.T) {
	svc, _, ids := newTestMappingService(t)
	tenantID := uuid.New()
	row, err := integration.NewIDMapping(tenantID, integration.EntityTypeCustomer,
		integration.SystemLocal, "c-1", integration.SystemAccounting, "ACC-9")
	require.NoError(t, err)
	require.NoError(t, ids.Create(context.Background(), row))

	fields := []integration.FieldMap{
		{SourcePath: "customer_id", TargetPath: "Contact.ContactID", Transforms: []integration.Transformation{{Kind: integration.TransformLookup, EntityType: integration.EntityTypeCustomer}}},
		{SourcePath: "number", TargetPath: "Reference", Required: true},
	}

	t.Run("valid sample", func(t *testing.T) {
		res, err := svc.Preview(context.Background(), tenantID, PreviewCommand{
			SourceSystem: integration.SystemLocal,
			TargetSystem: integration.SystemAccounting,
			EntityType:   integration.EntityTypeOrder,
			Fields:       fields,
			Sample:       map[string]any{"customer_id": "c-1", "number": "1001"},
		})
		require.NoError(t, err)
		assert.True(t, res.Valid)
		contact := res.Output["Contact"].(map[string]any)
		assert.Equal(t, "ACC-9", contact["ContactID"])
		assert.Equal(t, "1001", res.Output["Reference"])
		assert.Equal(t, 1, ids.count(), "preview never writes correlations")
	})

	t.Run("missing required field", func(t *testing.T) {
		res, err := svc.Preview(context.Background(), tenantID, PreviewCommand{
			SourceSystem: integration.SystemLocal,
			TargetSystem: integration.SystemAccounting,
			EntityType:   integration.EntityTypeOrder,
			Fields:       fields,
			Sample:       map[string]any{"customer_id": "c-1"},
		})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		require.NotEmpty(t, res.Errors)
		assert.Equal(t, "Reference", res.Errors[0].Field)
	})

	t.Run("unknown stored mapping", func(t *testing.T) {
		id := uuid.New()
		_, err := svc.Preview(context.Background(), tenantID, PreviewCommand{MappingID: &id})
		assert.ErrorIs(t, err, integration.ErrMappingNotFound)
	})
}
