package crm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate attribute names on an account record, in priority order
var (
	ERPCodeKeys = []string{"ERP_Customer_ID", "ERP_Customer_Code"}
	TaxIDKeys   = []string{"Account_AFM", "AFM", "Tin", "VAT"}
)

// tokenResponse is the OAuth token endpoint reply
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	ExpiresInSec json.Number `json:"expires_in_sec"`
	Error        string      `json:"error"`
}

// expiresInSeconds returns expires_in, then expires_in_sec, then 3600
func (r tokenResponse) expiresInSeconds() int64 {
	for _, n := range []json.Number{r.ExpiresIn, r.ExpiresInSec} {
		if n == "" {
			continue
		}
		if v, err := n.Int64(); err == nil && v > 0 {
			return v
		}
		if f, err := n.Float64(); err == nil && f > 0 {
			return int64(f)
		}
	}
	return 3600
}

// accountsResponse is the accounts-by-id reply
type accountsResponse struct {
	Data []map[string]any `json:"data"`
}

// AccountRecord is a CRM account as returned by the API
type AccountRecord map[string]any

// ID returns the record id, if present
func (r AccountRecord) ID() string {
	return r.lookup([]string{"id"})
}

// ERPCode returns the ERP customer code, or "" when absent
func (r AccountRecord) ERPCode() string {
	return r.lookup(ERPCodeKeys)
}

// TaxID returns the tax identifier, or "" when absent
func (r AccountRecord) TaxID() string {
	return r.lookup(TaxIDKeys)
}

func (r AccountRecord) lookup(keys []string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
