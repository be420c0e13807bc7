// Package bridge turns CRM deal events into ERP commercial entries.
//
// A Mapper reads the event envelope, enriches the account through the CRM
// accounts API and builds the ERP payload. A Service runs one event through
// the mapper and the ERP session client and reports the outcome to the host
// exactly once.
package bridge
