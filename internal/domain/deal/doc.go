// Package deal contains the Deal bounded context: the inbound CRM deal event
// envelope and the ERP commercial-entry document built from it.
//
// The envelope has no enforced schema. Extraction functions return option
// values and never fail on a missing or oddly typed field; absent values
// degrade to empty strings or JSON null in the outgoing payload.
package deal
