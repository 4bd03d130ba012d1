package models

// AddressType tags the purpose of an address. Only invoice-typed addresses
// participate in invoicing and VAT classification.
type AddressType string

const AddressTypeInvoice AddressType = "invoice"

// Address is a buyer address row. Company/tax/VAT ids are optional and only
// meaningful on invoice-typed addresses.
type Address struct {
	ID        int64
	BuyerID   int64
	Type      AddressType
	Name      string
	Street    string
	City      string
	Zip       string
	Country   string
	CompanyID string
	TaxID     string
	VatID     string
}

// Buyer is the invoicing view of a user account.
//
// InvoiceOptOut is the buyer's own preference; InvoicingDisabled is the
// administrative kill switch. Either one blocks automatic generation unless
// the caller explicitly overrides.
type Buyer struct {
	ID                int64
	Name              string
	InvoiceOptOut     bool
	InvoicingDisabled bool
	InvoiceAddress    *Address
}

// HasInvoiceAddress reports whether an invoice-typed address is on file.
func (b *Buyer) HasInvoiceAddress() bool {
	return b != nil && b.InvoiceAddress != nil
}
