// Package integration contains the Integration bounded context.
// This context covers the two external systems the deal bridge talks to:
// the CRM (source of deal events and account records) and the ERP gateway
// (target of commercial entries).
//
// Key concepts:
//   - ConfigurationError / UpstreamError / MappingError: error kinds shared by all adapters
//   - AccessToken: CRM bearer token with its expiry
//   - TokenStore: Port for caching the CRM bearer token
//   - PostResult: ERP gateway answer, kept intact for non-2xx statuses
//   - DeliveryStore: Port for remembering forwarded webhook deliveries
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
