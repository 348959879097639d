package connector

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/syncengine/internal/domain/integration"
)

// AccountingCodec converts between accounting API payloads and canonical entities.
// Orders become invoices: shipping is carried as a synthetic line item and
// every line gets the default tax code.
type AccountingCodec struct {
	DefaultCurrency  string
	DefaultTaxCode   string
	ShippingItemCode string
}

var _ integration.Codec = AccountingCodec{}

// NewAccountingCodec creates a codec with defaults for empty settings
func NewAccountingCodec(currency, taxCode, shippingCode string) AccountingCodec {
	return AccountingCodec{
		DefaultCurrency:  firstNonEmpty(currency, "USD"),
		DefaultTaxCode:   firstNonEmpty(taxCode, "TAX001"),
		ShippingItemCode: firstNonEmpty(shippingCode, "SHIPPING"),
	}
}

var accountingInvoiceStatus = map[string]string{
	"paid":      "PAID",
	"pending":   "AUTHORISED",
	"voided":    "VOIDED",
	"refunded":  "VOIDED",
	"cancelled": "VOIDED",
}

var canonicalOrderStatus = map[string]string{
	"PAID":       "paid",
	"AUTHORISED": "pending",
	"VOIDED":     "voided",
	"DRAFT":      "draft",
}

// Decode implements integration.Codec
func (c AccountingCodec) Decode(rec integration.RawRecord) (integration.Entity, error) {
	switch rec.EntityType {
	case integration.EntityTypeCustomer:
		var w accountingContact
		if err := fromMap(rec.Data, &w); err != nil {
			return nil, integration.NewValidationError("malformed accounting contact: " + err.Error())
		}
		updated, err := recordTime(w.UpdatedAt, rec)
		if err != nil {
			return nil, err
		}
		cust := &integration.Customer{
			ID:           firstNonEmpty(string(w.ContactID), rec.ExternalID),
			Email:        strings.TrimSpace(w.EmailAddress),
			FirstName:    w.FirstName,
			LastName:     w.LastName,
			Phone:        w.Phone,
			Company:      w.CompanyName,
			CustomFields: decodeCustomFields(w.CustomFields),
			UpdatedAt:    updated,
		}
		if len(w.Addresses) > 0 {
			cust.Address = decodeAccountingAddress(&w.Addresses[0])
		}
		return cust, nil

	case integration.EntityTypeProduct:
		var w accountingItem
		if err := fromMap(rec.Data, &w); err != nil {
			return nil, integration.NewValidationError("malformed accounting item: " + err.Error())
		}
		updated, err := recordTime(w.UpdatedAt, rec)
		if err != nil {
			return nil, err
		}
		return &integration.Product{
			ID:           firstNonEmpty(string(w.ItemID), rec.ExternalID),
			SKU:          w.Code,
			Name:         w.Name,
			Description:  w.Description,
			Price:        parseDecimal(string(w.SalesPrice)),
			Currency:     firstNonEmpty(w.Currency, c.DefaultCurrency),
			Active:       w.Status != "ARCHIVED",
			CustomFields: decodeCustomFields(w.CustomFields),
			UpdatedAt:    updated,
		}, nil

	case integration.EntityTypeOrder:
		var w accountingInvoice
		if err := fromMap(rec.Data, &w); err != nil {
			return nil, integration.NewValidationError("malformed accounting invoice: " + err.Error())
		}
		return c.decodeInvoice(w, rec)

	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidEntityType, rec.EntityType)
	}
}

func (c AccountingCodec) decodeInvoice(w accountingInvoice, rec integration.RawRecord) (integration.Entity, error) {
	updated, err := recordTime(w.UpdatedAt, rec)
	if err != nil {
		return nil, err
	}
	placed, err := parseTime(w.Date)
	if err != nil {
		return nil, integration.NewValidationError("invalid invoice date", integration.FieldError{Field: "date", Message: err.Error()})
	}
	status := canonicalOrderStatus[w.Status]
	if status == "" {
		status = strings.ToLower(w.Status)
	}

	o := &integration.Order{
		ID:              firstNonEmpty(string(w.InvoiceID), rec.ExternalID),
		Number:          w.Number,
		CustomerID:      string(w.Contact.ContactID),
		CustomerEmail:   strings.TrimSpace(w.Contact.EmailAddress),
		CustomerName:    w.Contact.Name,
		Status:          status,
		Currency:        firstNonEmpty(w.Currency, c.DefaultCurrency),
		Tax:             parseDecimal(string(w.TotalTax)),
		Total:           parseDecimal(string(w.Total)),
		LineItems:       make([]integration.LineItem, 0, len(w.LineItems)),
		ShippingAddress: decodeAccountingAddress(w.ShippingAddress),
		CustomFields:    decodeCustomFields(w.CustomFields),
		PlacedAt:        placed,
		UpdatedAt:       updated,
	}
	for _, li := range w.LineItems {
		amount := parseDecimal(string(li.UnitAmount))
		if li.ItemCode == c.ShippingItemCode {
			o.Shipping = o.Shipping.Add(amount.Mul(decimal.NewFromInt(int64(li.Quantity))))
			continue
		}
		o.LineItems = append(o.LineItems, integration.LineItem{
			SKU:       li.ItemCode,
			Name:      li.Description,
			ProductID: string(li.ItemID),
			Quantity:  li.Quantity,
			UnitPrice: amount,
		})
	}
	return o, nil
}

// Encode implements integration.Codec
func (c AccountingCodec) Encode(e integration.Entity, fields map[string]any) (map[string]any, error) {
	custom, fields, err := mergeCustomFields(entityCustomFields(e), fields)
	if err != nil {
		return nil, err
	}

	var wire any
	switch v := e.(type) {
	case *integration.Customer:
		contact := accountingContact{
			Name:         firstNonEmpty(v.Company, v.FullName(), v.Email),
			FirstName:    v.FirstName,
			LastName:     v.LastName,
			EmailAddress: v.Email,
			Phone:        v.Phone,
			CompanyName:  v.Company,
			CustomFields: custom,
		}
		if a := encodeAccountingAddress(v.Address, "billing"); a != nil {
			contact.Addresses = []accountingAddress{*a}
		}
		wire = contact

	case *integration.Product:
		status := "ARCHIVED"
		if v.Active {
			status = "ACTIVE"
		}
		wire = accountingItem{
			Code:         v.SKU,
			Name:         v.Name,
			Description:  v.Description,
			SalesPrice:   flexString(v.Price.StringFixed(2)),
			Currency:     firstNonEmpty(v.Currency, c.DefaultCurrency),
			Status:       status,
			CustomFields: custom,
		}

	case *integration.Order:
		wire = c.encodeInvoice(v, custom)

	default:
		return nil, fmt.Errorf("%w: %T", integration.ErrInvalidEntityType, e)
	}

	payload, err := toMap(wire)
	if err != nil {
		return nil, fmt.Errorf("accounting: encode %s: %w", e.EntityType(), err)
	}
	return overlay(payload, fields), nil
}

func entityCustomFields(e integration.Entity) map[string]string {
	switch v := e.(type) {
	case *integration.Customer:
		return v.CustomFields
	case *integration.Product:
		return v.CustomFields
	case *integration.Order:
		return v.CustomFields
	}
	return nil
}

// mergeCustomFields folds mapped custom_fields (an object, or the wire list of
// name/value pairs) into the entity's own before the field cap is checked.
// The returned fields no longer carry custom_fields, so overlay cannot
// replace the encoded list.
func mergeCustomFields(own map[string]string, fields map[string]any) ([]accountingCustomField, map[string]any, error) {
	mapped, ok := fields["custom_fields"]
	if !ok {
		custom, err := encodeCustomFields(own)
		return custom, fields, err
	}
	rest := maps.Clone(fields)
	delete(rest, "custom_fields")

	merged := maps.Clone(own)
	if merged == nil {
		merged = make(map[string]string)
	}
	invalid := integration.NewValidationError("mapped custom fields are malformed",
		integration.FieldError{Field: "custom_fields", Message: fmt.Sprintf("unsupported value %T", mapped)})
	switch m := mapped.(type) {
	case nil:
	case map[string]any:
		for k, v := range m {
			merged[k] = stringValue(v)
		}
	case []any:
		for _, item := range m {
			pair, ok := item.(map[string]any)
			name := stringValue(pair["name"])
			if !ok || name == "" {
				return nil, nil, invalid
			}
			merged[name] = stringValue(pair["value"])
		}
	default:
		return nil, nil, invalid
	}
	custom, err := encodeCustomFields(merged)
	return custom, rest, err
}

func (c AccountingCodec) encodeInvoice(o *integration.Order, custom []accountingCustomField) accountingInvoice {
	status := accountingInvoiceStatus[strings.ToLower(o.Status)]
	if status == "" {
		status = "DRAFT"
	}
	inv := accountingInvoice{
		Number: o.Number,
		Contact: accountingInvoiceContact{
			ContactID:    flexString(o.CustomerID),
			Name:         o.CustomerName,
			EmailAddress: o.CustomerEmail,
		},
		Status:          status,
		Currency:        firstNonEmpty(o.Currency, c.DefaultCurrency),
		LineItems:       make([]accountingInvoiceLine, 0, len(o.LineItems)+1),
		TotalTax:        flexString(o.Tax.StringFixed(2)),
		Total:           flexString(o.Total.StringFixed(2)),
		ShippingAddress: encodeAccountingAddress(o.ShippingAddress, "shipping"),
		CustomFields:    custom,
		Date:            formatTime(o.PlacedAt),
	}
	for _, li := range o.LineItems {
		inv.LineItems = append(inv.LineItems, accountingInvoiceLine{
			ItemCode:    li.SKU,
			Description: li.Name,
			Quantity:    li.Quantity,
			UnitAmount:  flexString(li.UnitPrice.StringFixed(2)),
			TaxCode:     c.DefaultTaxCode,
		})
	}
	if o.Shipping.GreaterThan(decimal.Zero) {
		inv.LineItems = append(inv.LineItems, accountingInvoiceLine{
			ItemCode:    c.ShippingItemCode,
			Description: "Shipping",
			Quantity:    1,
			UnitAmount:  flexString(o.Shipping.StringFixed(2)),
			TaxCode:     c.DefaultTaxCode,
		})
	}
	return inv
}

// encodeCustomFields renders custom fields in key order and enforces the platform cap
func encodeCustomFields(fields map[string]string) ([]accountingCustomField, error) {
	if len(fields) > accountingCustomFieldLimit {
		return nil, integration.NewValidationError(
			fmt.Sprintf("accounting records carry at most %d custom fields", accountingCustomFieldLimit),
			integration.FieldError{Field: "custom_fields", Message: fmt.Sprintf("%d fields given", len(fields))},
		)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]accountingCustomField, 0, len(keys))
	for _, k := range keys {
		out = append(out, accountingCustomField{Name: k, Value: fields[k]})
	}
	return out, nil
}

func decodeCustomFields(fields []accountingCustomField) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Value
	}
	return out
}

func decodeAccountingAddress(a *accountingAddress) *integration.Address {
	if a == nil {
		return nil
	}
	addr := &integration.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
	if *addr == (integration.Address{}) {
		return nil
	}
	return addr
}

func encodeAccountingAddress(a *integration.Address, kind string) *accountingAddress {
	if a == nil {
		return nil
	}
	return &accountingAddress{
		Type:       kind,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// recordTime parses a document timestamp, falling back to the record's own
func recordTime(v string, rec integration.RawRecord) (time.Time, error) {
	parsed, err := parseTime(v)
	if err != nil {
		return parsed, integration.NewValidationError("invalid timestamp", integration.FieldError{Field: "updated_at", Message: err.Error()})
	}
	if parsed.IsZero() {
		return rec.UpdatedAt, nil
	}
	return parsed, nil
}
