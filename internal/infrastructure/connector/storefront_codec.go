package connector

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erp/syncengine/internal/domain/integration"
)

// StorefrontCodec converts between storefront REST payloads and canonical entities
type StorefrontCodec struct {
	// DefaultCurrency fills orders and products that carry none
	DefaultCurrency string
}

var _ integration.Codec = StorefrontCodec{}

// Decode implements integration.Codec
func (c StorefrontCodec) Decode(rec integration.RawRecord) (integration.Entity, error) {
	switch rec.EntityType {
	case integration.EntityTypeCustomer:
		var w storefrontCustomer
		if err := fromMap(rec.Data, &w); err != nil {
			return nil, integration.NewValidationError("malformed storefront customer: " + err.Error())
		}
		updated, err := recordTime(w.UpdatedAt, rec)
		if err != nil {
			return nil, err
		}
		return &integration.Customer{
			ID:           firstNonEmpty(string(w.ID), rec.ExternalID),
			Email:        strings.TrimSpace(w.Email),
			FirstName:    w.FirstName,
			LastName:     w.LastName,
			Phone:        w.Phone,
			Company:      w.Company,
			Address:      decodeStorefrontAddress(w.DefaultAddress),
			CustomFields: w.Metafields,
			UpdatedAt:    updated,
		}, nil

	case integration.EntityTypeProduct:
		var w storefrontProduct
		if err := fromMap(rec.Data, &w); err != nil {
			return nil, integration.NewValidationError("malformed storefront product: " + err.Error())
		}
		updated, err := recordTime(w.UpdatedAt, rec)
		if err != nil {
			return nil, err
		}
		return &integration.Product{
			ID:           firstNonEmpty(string(w.ID), rec.ExternalID),
			SKU:          w.SKU,
			Name:         w.Title,
			Description:  w.BodyHTML,
			Price:        parseDecimal(string(w.Price)),
			Currency:     firstNonEmpty(w.Currency, c.DefaultCurrency),
			Active:       w.Status == "active",
			CustomFields: w.Metafields,
			UpdatedAt:    updated,
		}, nil

	case integration.EntityTypeOrder:
		var w storefrontOrder
		if err := fromMap(rec.Data, &w); err != nil {
			return nil, integration.NewValidationError("malformed storefront order: " + err.Error())
		}
		return c.decodeOrder(w, rec)

	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, rec.EntityType)
	}
}

func (c StorefrontCodec) decodeOrder(w storefrontOrder, rec integration.RawRecord) (integration.Entity, error) {
	updated, err := recordTime(w.UpdatedAt, rec)
	if err != nil {
		return nil, err
	}
	placed, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, integration.NewValidationError("invalid order timestamp", integration.FieldError{Field: "created_at", Message: err.Error()})
	}

	o := &integration.Order{
		ID:              firstNonEmpty(string(w.ID), rec.ExternalID),
		Number:          strings.TrimPrefix(w.Name, "#"),
		CustomerEmail:   strings.TrimSpace(w.Email),
		Status:          w.FinancialStatus,
		Currency:        firstNonEmpty(w.Currency, c.DefaultCurrency),
		Tax:             parseDecimal(string(w.TotalTax)),
		Total:           parseDecimal(string(w.TotalPrice)),
		LineItems:       make([]integration.LineItem, 0, len(w.LineItems)),
		ShippingAddress: decodeStorefrontAddress(w.ShippingAddress),
		CustomFields:    w.NoteAttributes,
		PlacedAt:        placed,
		UpdatedAt:       updated,
	}
	if w.Customer != nil {
		o.CustomerID = string(w.Customer.ID)
		o.CustomerName = strings.TrimSpace(w.Customer.FirstName + " " + w.Customer.LastName)
		if o.CustomerEmail == "" {
			o.CustomerEmail = w.Customer.Email
		}
	}
	for _, sl := range w.ShippingLines {
		o.Shipping = o.Shipping.Add(parseDecimal(string(sl.Price)))
	}
	for _, li := range w.LineItems {
		o.LineItems = append(o.LineItems, integration.LineItem{
			SKU:       li.SKU,
			Name:      li.Title,
			ProductID: string(li.ProductID),
			Quantity:  li.Quantity,
			UnitPrice: parseDecimal(string(li.Price)),
		})
	}
	return o, nil
}

// Encode implements integration.Codec. The canonical id belongs to the source
// system and is never sent; order customers are referenced by the id the
// caller resolved for this storefront.
func (c StorefrontCodec) Encode(e integration.Entity, fields map[string]any) (map[string]any, error) {
	var wire any
	switch v := e.(type) {
	case *integration.Customer:
		wire = storefrontCustomer{
			Email:          v.Email,
			FirstName:      v.FirstName,
			LastName:       v.LastName,
			Phone:          v.Phone,
			Company:        v.Company,
			DefaultAddress: encodeStorefrontAddress(v.Address),
			Metafields:     v.CustomFields,
		}
	case *integration.Product:
		status := "draft"
		if v.Active {
			status = "active"
		}
		wire = storefrontProduct{
			Title:      v.Name,
			BodyHTML:   v.Description,
			SKU:        v.SKU,
			Price:      flexString(v.Price.StringFixed(2)),
			Currency:   firstNonEmpty(v.Currency, c.DefaultCurrency),
			Status:     status,
			Metafields: v.CustomFields,
		}
	case *integration.Order:
		wire = c.encodeOrder(v)
	default:
		return nil, fmt.Errorf("%w: %T", integration.ErrInvalidEntityType, e)
	}

	payload, err := toMap(wire)
	if err != nil {
		return nil, fmt.Errorf("storefront: encode %s: %w", e.EntityType(), err)
	}
	return overlay(payload, fields), nil
}

func (c StorefrontCodec) encodeOrder(o *integration.Order) storefrontOrder {
	w := storefrontOrder{
		Name:            o.Number,
		Email:           o.CustomerEmail,
		FinancialStatus: o.Status,
		Currency:        firstNonEmpty(o.Currency, c.DefaultCurrency),
		TotalPrice:      flexString(o.Total.StringFixed(2)),
		TotalTax:        flexString(o.Tax.StringFixed(2)),
		LineItems:       make([]storefrontLineItem, 0, len(o.LineItems)),
		ShippingAddress: encodeStorefrontAddress(o.ShippingAddress),
		NoteAttributes:  o.CustomFields,
		CreatedAt:       formatTime(o.PlacedAt),
	}
	if o.CustomerID != "" {
		w.Customer = &storefrontOrderCustomer{ID: flexString(o.CustomerID)}
	}
	for _, li := range o.LineItems {
		w.LineItems = append(w.LineItems, storefrontLineItem{
			SKU:      li.SKU,
			Title:    li.Name,
			Quantity: li.Quantity,
			Price:    flexString(li.UnitPrice.StringFixed(2)),
		})
	}
	if o.Shipping.GreaterThan(decimal.Zero) {
		w.ShippingLines = []storefrontShippingLine{{Title: "Shipping", Price: flexString(o.Shipping.StringFixed(2))}}
	}
	return w
}

func decodeStorefrontAddress(a *storefrontAddress) *integration.Address {
	if a == nil || *a == (storefrontAddress{}) {
		return nil
	}
	return &integration.Address{
		Line1:      a.Address1,
		Line2:      a.Address2,
		City:       a.City,
		Region:     a.Province,
		PostalCode: a.Zip,
		Country:    a.CountryCode,
	}
}

func encodeStorefrontAddress(a *integration.Address) *storefrontAddress {
	if a == nil {
		return nil
	}
	return &storefrontAddress{
		Address1:    a.Line1,
		Address2:    a.Line2,
		City:        a.City,
		Province:    a.Region,
		Zip:         a.PostalCode,
		CountryCode: a.Country,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
