package connector

import (
	"fmt"

	"github.com/erp/syncengine/internal/domain/integration"
)

// DocumentCodec is the codec of systems that store canonical documents as-is:
// the local store and the warehouse
type DocumentCodec struct{}

var _ integration.Codec = DocumentCodec{}

// Decode implements integration.Codec
func (DocumentCodec) Decode(rec integration.RawRecord) (integration.Entity, error) {
	e, err := integration.FromDocument(rec.EntityType, rec.Data)
	if err != nil {
		return nil, err
	}
	switch v := e.(type) {
	case *integration.Customer:
		v.ID = firstNonEmpty(rec.ExternalID, v.ID)
		if v.UpdatedAt.IsZero() {
			v.UpdatedAt = rec.UpdatedAt
		}
	case *integration.Product:
		v.ID = firstNonEmpty(rec.ExternalID, v.ID)
		if v.UpdatedAt.IsZero() {
			v.UpdatedAt = rec.UpdatedAt
		}
	case *integration.Order:
		v.ID = firstNonEmpty(rec.ExternalID, v.ID)
		if v.UpdatedAt.IsZero() {
			v.UpdatedAt = rec.UpdatedAt
		}
	}
	return e, nil
}

// Encode implements integration.Codec. The id is dropped: it belongs to the
// system the entity was read from.
func (DocumentCodec) Encode(e integration.Entity, fields map[string]any) (map[string]any, error) {
	doc, err := integration.ToDocument(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityType(), err)
	}
	delete(doc, "id")
	return overlay(doc, fields), nil
}
