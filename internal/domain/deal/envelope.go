package deal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/erp/dealbridge/internal/domain/integration"
)

// Candidate key names, consulted in order. Older CRM workflow versions used
// different spellings for the same field.
var (
	DealIDKeys      = []string{"id", "ID"}
	PaymentCodeKeys = []string{"Payment_Code", "PaymentCode"}
	AccountKeys     = []string{"Account_Name", "Account"}
	AccountIDKeys   = []string{"id", "ID", "Code", "code"}
	AccountNameKeys = []string{"name", "Name"}
	InlineTaxIDKeys = []string{"Account_AFM", "AFM", "Tin", "TIN", "VAT", "Vat_Number"}
)

const (
	eventsKey    = "events"
	eventDataKey = "data"
)

// Envelope is the raw deal event as delivered by the CRM webhook
type Envelope map[string]any

// DecodeEnvelope parses raw webhook bytes. Numbers are kept as json.Number so
// long numeric CRM ids survive without float rounding.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &integration.MappingError{Reason: "envelope is not valid JSON", Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		// Arrays and scalars carry no deal; treat them as an empty envelope.
		return Envelope{}, nil
	}
	return Envelope(obj), nil
}

// Data locates the event payload: events[0].data, then data, then the
// envelope itself. A nil envelope yields an empty object.
func (e Envelope) Data() map[string]any {
	if e == nil {
		return map[string]any{}
	}
	if events, ok := e[eventsKey].([]any); ok && len(events) > 0 {
		if first, ok := events[0].(map[string]any); ok {
			if data, ok := first[eventDataKey].(map[string]any); ok {
				return data
			}
		}
	}
	if data, ok := e[eventDataKey].(map[string]any); ok {
		return data
	}
	return map[string]any(e)
}

// AccountRef is the account reference carried by a deal
type AccountRef struct {
	Code    string
	Name    string
	HasName bool
	TaxID   string
}

// DealFields is everything the mapper reads from the event payload
type DealFields struct {
	DealID         string
	HasDealID      bool
	PaymentCode    string
	HasPaymentCode bool
	Account        AccountRef
	HasAccount     bool
}

// ExtractFields reads all known fields from the envelope
func ExtractFields(e Envelope) DealFields {
	data := e.Data()

	var f DealFields
	f.DealID, f.HasDealID = LookupString(data, DealIDKeys)
	f.PaymentCode, f.HasPaymentCode = LookupString(data, PaymentCodeKeys)
	f.Account, f.HasAccount = ExtractAccount(data)
	return f
}

// ExtractAccount reads the account reference. An object yields its id and
// name; a scalar is used as both code and name. The tax id is looked up on
// the account object first, then on the data object. Without an account
// reference nothing is returned, not even an inline tax id.
func ExtractAccount(data map[string]any) (AccountRef, bool) {
	var raw any
	for _, k := range AccountKeys {
		if v, ok := data[k]; ok && v != nil {
			raw = v
			break
		}
	}
	if raw == nil {
		return AccountRef{}, false
	}

	var ref AccountRef
	found := false
	switch acct := raw.(type) {
	case map[string]any:
		ref.Code, _ = LookupString(acct, AccountIDKeys)
		ref.Name, ref.HasName = LookupString(acct, AccountNameKeys)
		ref.TaxID, _ = LookupString(acct, InlineTaxIDKeys)
		found = ref.Code != "" || ref.HasName
	default:
		if s, ok := scalarString(acct); ok {
			ref.Code, ref.Name, ref.HasName = s, s, true
			found = true
		}
	}

	if ref.TaxID == "" {
		ref.TaxID, _ = LookupString(data, InlineTaxIDKeys)
	}
	return ref, found
}

// LookupString returns the first non-empty scalar found under keys
func LookupString(obj map[string]any, keys []string) (string, bool) {
	if obj == nil {
		return "", false
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s, true
		}
	}
	return "", false
}

// scalarString renders strings and numbers; everything else is absent
func scalarString(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
