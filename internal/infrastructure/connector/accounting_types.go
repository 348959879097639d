package connector

// ---------------------------------------------------------------------------
// Accounting wire types
// ---------------------------------------------------------------------------

// accountingCustomFieldLimit is the number of custom fields an accounting
// record can carry
const accountingCustomFieldLimit = 3

type accountingCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type accountingAddress struct {
	Type       string `json:"type,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type accountingContact struct {
	ContactID    flexString              `json:"contact_id,omitempty"`
	Name         string                  `json:"name"`
	FirstName    string                  `json:"first_name,omitempty"`
	LastName     string                  `json:"last_name,omitempty"`
	EmailAddress string                  `json:"email_address"`
	Phone        string                  `json:"phone,omitempty"`
	CompanyName  string                  `json:"company_name,omitempty"`
	Addresses    []accountingAddress     `json:"addresses,omitempty"`
	CustomFields []accountingCustomField `json:"custom_fields,omitempty"`
	UpdatedAt    string                  `json:"updated_at,omitempty"`
}

type accountingItem struct {
	ItemID       flexString              `json:"item_id,omitempty"`
	Code         string                  `json:"code"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	SalesPrice   flexString              `json:"sales_price"`
	Currency     string                  `json:"currency,omitempty"`
	Status       string                  `json:"status"`
	CustomFields []accountingCustomField `json:"custom_fields,omitempty"`
	UpdatedAt    string                  `json:"updated_at,omitempty"`
}

type accountingInvoiceContact struct {
	ContactID    flexString `json:"contact_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	EmailAddress string     `json:"email_address,omitempty"`
}

type accountingInvoiceLine struct {
	ItemCode    string     `json:"item_code"`
	Description string     `json:"description,omitempty"`
	ItemID      flexString `json:"item_id,omitempty"`
	Quantity    int        `json:"quantity"`
	UnitAmount  flexString `json:"unit_amount"`
	TaxCode     string     `json:"tax_code,omitempty"`
}

type accountingInvoice struct {
	InvoiceID       flexString               `json:"invoice_id,omitempty"`
	Number          string                   `json:"number,omitempty"`
	Contact         accountingInvoiceContact `json:"contact"`
	Status          string                   `json:"status,omitempty"`
	Currency        string                   `json:"currency,omitempty"`
	LineItems       []accountingInvoiceLine  `json:"line_items"`
	TotalTax        flexString               `json:"total_tax"`
	Total           flexString               `json:"total"`
	ShippingAddress *accountingAddress       `json:"shipping_address,omitempty"`
	CustomFields    []accountingCustomField  `json:"custom_fields,omitempty"`
	Date            string                   `json:"date,omitempty"`
	UpdatedAt       string                   `json:"updated_at,omitempty"`
}
