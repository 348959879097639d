package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Canonical entities
// ---------------------------------------------------------------------------

// Entity is a platform-neutral business record.
// Fingerprint returns the content that identifies a version of the record:
// system-specific identifiers and timestamps are excluded so that the same
// content read from two systems hashes identically.
type Entity interface {
	EntityType() EntityType
	ExternalID() string
	ModifiedAt() time.Time
	Fingerprint() any
}

// Address is a postal address
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Customer is the canonical customer
type Customer struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Company      string            `json:"company,omitempty"`
	Address      *Address          `json:"address,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (c *Customer) EntityType() EntityType { return EntityTypeCustomer }
func (c *Customer) ExternalID() string     { return c.ID }
func (c *Customer) ModifiedAt() time.Time  { return c.UpdatedAt }

// Fingerprint implements Entity
func (c *Customer) Fingerprint() any {
	return struct {
		Email        string            `json:"email"`
		FirstName    string            `json:"first_name"`
		LastName     string            `json:"last_name"`
		Phone        string            `json:"phone"`
		Company      string            `json:"company"`
		Address      *Address          `json:"address"`
		CustomFields map[string]string `json:"custom_fields"`
	}{
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Phone:        c.Phone,
		Company:      c.Company,
		Address:      c.Address,
		CustomFields: c.CustomFields,
	}
}

// FullName joins first and last name
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Product is the canonical product
type Product struct {
	ID           string            `json:"id"`
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Price        decimal.Decimal   `json:"price"`
	Currency     string            `json:"currency,omitempty"`
	Active       bool              `json:"active"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (p *Product) EntityType() EntityType { return EntityTypeProduct }
func (p *Product) ExternalID() string     { return p.ID }
func (p *Product) ModifiedAt() time.Time  { return p.UpdatedAt }

// Fingerprint implements Entity
func (p *Product) Fingerprint() any {
	return struct {
		SKU          string            `json:"sku"`
		Name         string            `json:"name"`
		Description  string            `json:"description"`
		Price        string            `json:"price"`
		Currency     string            `json:"currency"`
		Active       bool              `json:"active"`
		CustomFields map[string]string `json:"custom_fields"`
	}{
		SKU:          p.SKU,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price.StringFixed(2),
		Currency:     p.Currency,
		Active:       p.Active,
		CustomFields: p.CustomFields,
	}
}

// LineItem is one line of an order
type LineItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name,omitempty"`
	ProductID string          `json:"product_id,omitempty"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Amount returns quantity times unit price
func (l LineItem) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the canonical order
type Order struct {
	ID              string            `json:"id"`
	Number          string            `json:"number,omitempty"`
	CustomerID      string            `json:"customer_id,omitempty"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerName    string            `json:"customer_name,omitempty"`
	Status          string            `json:"status,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	Shipping        decimal.Decimal   `json:"shipping"`
	Tax             decimal.Decimal   `json:"tax"`
	Total           decimal.Decimal   `json:"total"`
	LineItems       []LineItem        `json:"line_items"`
	ShippingAddress *Address          `json:"shipping_address,omitempty"`
	CustomFields    map[string]string `json:"custom_fields,omitempty"`
	PlacedAt        time.Time         `json:"placed_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (o *Order) EntityType() EntityType { return EntityTypeOrder }
func (o *Order) ExternalID() string     { return o.ID }
func (o *Order) ModifiedAt() time.Time  { return o.UpdatedAt }

// Fingerprint implements Entity. Line items are compared by SKU, quantity
// and price; product references differ per system and are left out.
func (o *Order) Fingerprint() any {
	type line struct {
		SKU       string `json:"sku"`
		Quantity  int    `json:"qty"`
		UnitPrice string `json:"unit_price"`
	}
	lines := make([]line, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lines = append(lines, line{SKU: li.SKU, Quantity: li.Quantity, UnitPrice: li.UnitPrice.StringFixed(2)})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].SKU < lines[j].SKU })
	return struct {
		Number        string            `json:"number"`
		CustomerEmail string            `json:"customer_email"`
		Status        string            `json:"status"`
		Currency      string            `json:"currency"`
		Shipping      string            `json:"shipping"`
		Tax           string            `json:"tax"`
		Total         string            `json:"total"`
		Lines         []line            `json:"lines"`
		Address       *Address          `json:"address"`
		CustomFields  map[string]string `json:"custom_fields"`
	}{
		Number:        o.Number,
		CustomerEmail: strings.ToLower(strings.TrimSpace(o.CustomerEmail)),
		Status:        o.Status,
		Currency:      o.Currency,
		Shipping:      o.Shipping.StringFixed(2),
		Tax:           o.Tax.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Lines:         lines,
		Address:       o.ShippingAddress,
		CustomFields:  o.CustomFields,
	}
}

// ---------------------------------------------------------------------------
// Hashing and document conversion
// ---------------------------------------------------------------------------

// ContentHash returns the hex SHA-256 of the entity fingerprint
func ContentHash(e Entity) (string, error) {
	raw, err := json.Marshal(e.Fingerprint())
	if err != nil {
		return "", fmt.Errorf("integration: hash %s %s: %w", e.EntityType(), e.ExternalID(), err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ToDocument renders an entity as a generic JSON document for the mapping engine
func ToDocument(e Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// NewEntity returns an empty entity of the given type
func NewEntity(t EntityType) (Entity, error) {
	switch t {
	case EntityTypeOrder:
		return &Order{}, nil
	case EntityTypeCustomer:
		return &Customer{}, nil
	case EntityTypeProduct:
		return &Product{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntityType, t)
	}
}

// FromDocument decodes a canonical-shaped document into an entity
func FromDocument(t EntityType, doc map[string]any) (Entity, error) {
	e, err := NewEntity(t)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, NewValidationError(fmt.Sprintf("decode %s: %v", t, err))
	}
	return e, nil
}
