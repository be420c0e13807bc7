package deal

// Enrichment is what the CRM accounts API knows about an account.
// Empty fields mean the record or attribute was absent.
type Enrichment struct {
	ERPCode string
	TaxID   string
}
