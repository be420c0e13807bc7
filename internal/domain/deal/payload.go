package deal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Literal values required by the receiving ERP system
const (
	EntryTypeCode   = "ΠΡΟΣΦΧΟΝ"
	WarehouseCode   = "00"
	CurrencyCode    = "EUR"
	OrderItemID     = "OO.PARAGGELIA"
	DealIDUserField = "StringField1"
	MessageSource   = "crm-deals"

	DefaultClientCode  = "1"
	DefaultClientName  = "CRM"
	DefaultWebScenario = "WEB"
)

// Payload is the document posted to the ERP PostCommercialEntry endpoint
type Payload struct {
	Client            Client            `json:"Client"`
	MessageHeader     MessageHeader     `json:"MessageHeader"`
	WebScenario       WebScenario       `json:"WebScenario"`
	CommercialEntries []CommercialEntry `json:"CommercialEntries"`
}

// Client identifies the sending application to the ERP gateway
type Client struct {
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// MessageHeader carries per-message metadata
type MessageHeader struct {
	MessageID string `json:"MessageId"`
	Source    string `json:"Source"`
	CreatedAt string `json:"CreatedAt"`
}

// WebScenario selects the ERP-side import scenario
type WebScenario struct {
	Code string `json:"Code"`
}

// CommercialEntry is one ERP commercial document (an offer)
type CommercialEntry struct {
	EntryTypeCode        string                `json:"EntryTypeCode"`
	OfficialDate         string                `json:"OfficialDate"`
	WareHouseCode        string                `json:"WareHouseCode"`
	CurrencyCode         string                `json:"CurrencyCode"`
	PaymentCode          *string               `json:"PaymentCode,omitempty"`
	Customer             Customer              `json:"Customer"`
	CommercialEntryLines []CommercialEntryLine `json:"CommercialEntryLines"`
	UserFields           []UserField           `json:"UserFields"`
}

// Customer is the ERP customer the entry is booked against.
// Code is empty unless the CRM account carries an ERP customer code.
type Customer struct {
	Code string  `json:"Code"`
	Name *string `json:"Name"`
	Tin  string  `json:"Tin,omitempty"`
}

// CommercialEntryLine is a single item line
type CommercialEntryLine struct {
	ItemID string `json:"ItemID"`
	Qty    Amount `json:"Qty"`
	Price  Amount `json:"Price"`
}

// UserField is a free ERP user field
type UserField struct {
	Field string  `json:"Field"`
	Value *string `json:"Value"`
}

// Amount is a decimal that serializes as a bare JSON number
type Amount struct {
	decimal.Decimal
}

// NewAmount creates an Amount from an integer
func NewAmount(v int64) Amount {
	return Amount{decimal.NewFromInt(v)}
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Header holds the configurable top-level sections
type Header struct {
	ClientCode  string
	ClientName  string
	WebScenario string
}

// DefaultHeader returns the header values used when nothing is configured
func DefaultHeader() Header {
	return Header{
		ClientCode:  DefaultClientCode,
		ClientName:  DefaultClientName,
		WebScenario: DefaultWebScenario,
	}
}

// BuildParams is the variable input for NewPayload
type BuildParams struct {
	Header      Header
	MessageID   string
	Now         time.Time
	DealID      *string
	PaymentCode *string
	Customer    Customer
}

// NewPayload assembles the fixed-shape ERP document with exactly one entry
func NewPayload(p BuildParams) *Payload {
	header := p.Header
	if header.ClientCode == "" {
		header.ClientCode = DefaultClientCode
	}
	if header.ClientName == "" {
		header.ClientName = DefaultClientName
	}
	if header.WebScenario == "" {
		header.WebScenario = DefaultWebScenario
	}

	return &Payload{
		Client: Client{
			Code: header.ClientCode,
			Name: header.ClientName,
		},
		MessageHeader: MessageHeader{
			MessageID: p.MessageID,
			Source:    MessageSource,
			CreatedAt: p.Now.UTC().Format(time.RFC3339),
		},
		WebScenario: WebScenario{Code: header.WebScenario},
		CommercialEntries: []CommercialEntry{
			{
				EntryTypeCode: EntryTypeCode,
				OfficialDate:  FormatOfficialDate(p.Now),
				WareHouseCode: WarehouseCode,
				CurrencyCode:  CurrencyCode,
				PaymentCode:   p.PaymentCode,
				Customer:      p.Customer,
				CommercialEntryLines: []CommercialEntryLine{
					{
						ItemID: OrderItemID,
						Qty:    NewAmount(1),
						Price:  NewAmount(1),
					},
				},
				UserFields: []UserField{
					{
						Field: DealIDUserField,
						Value: p.DealID,
					},
				},
			},
		},
	}
}

// FormatOfficialDate renders D/M/YYYY without zero padding
func FormatOfficialDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// NormalizeText trims and composes text to NFC so that the ERP compares
// Greek customer names and tax ids byte for byte
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
