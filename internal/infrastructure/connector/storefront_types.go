package connector

import (
	"bytes"
	"encoding/json"
)

// flexString accepts a JSON string or number. Platforms are inconsistent
// about quoting ids and money amounts.
type flexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// ---------------------------------------------------------------------------
// Storefront wire types
// ---------------------------------------------------------------------------

type storefrontAddress struct {
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	Zip         string `json:"zip,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type storefrontCustomer struct {
	ID             flexString         `json:"id,omitempty"`
	Email          string             `json:"email"`
	FirstName      string             `json:"first_name,omitempty"`
	LastName       string             `json:"last_name,omitempty"`
	Phone          string             `json:"phone,omitempty"`
	Company        string             `json:"company,omitempty"`
	DefaultAddress *storefrontAddress `json:"default_address,omitempty"`
	Metafields     map[string]string  `json:"metafields,omitempty"`
	UpdatedAt      string             `json:"updated_at,omitempty"`
}

type storefrontProduct struct {
	ID         flexString        `json:"id,omitempty"`
	Title      string            `json:"title"`
	BodyHTML   string            `json:"body_html,omitempty"`
	SKU        string            `json:"sku"`
	Price      flexString        `json:"price"`
	Currency   string            `json:"currency,omitempty"`
	Status     string            `json:"status"`
	Metafields map[string]string `json:"metafields,omitempty"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type storefrontLineItem struct {
	SKU       string     `json:"sku"`
	Title     string     `json:"title,omitempty"`
	ProductID flexString `json:"product_id,omitempty"`
	Quantity  int        `json:"quantity"`
	Price     flexString `json:"price"`
}

type storefrontShippingLine struct {
	Title string     `json:"title"`
	Price flexString `json:"price"`
}

type storefrontOrderCustomer struct {
	ID        flexString `json:"id,omitempty"`
	Email     string     `json:"email,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
}

type storefrontOrder struct {
	ID              flexString               `json:"id,omitempty"`
	Name            string                   `json:"name,omitempty"`
	Email           string                   `json:"email"`
	Customer        *storefrontOrderCustomer `json:"customer,omitempty"`
	FinancialStatus string                   `json:"financial_status,omitempty"`
	Currency        string                   `json:"currency,omitempty"`
	TotalPrice      flexString               `json:"total_price"`
	TotalTax        flexString               `json:"total_tax"`
	LineItems       []storefrontLineItem     `json:"line_items"`
	ShippingLines   []storefrontShippingLine `json:"shipping_lines,omitempty"`
	ShippingAddress *storefrontAddress       `json:"shipping_address,omitempty"`
	NoteAttributes  map[string]string        `json:"note_attributes,omitempty"`
	CreatedAt       string                   `json:"created_at,omitempty"`
	UpdatedAt       string                   `json:"updated_at,omitempty"`
}

// tokenResponse is the OAuth token endpoint response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
