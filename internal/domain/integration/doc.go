// Package integration contains the Integration bounded context.
// This context synchronizes orders, customers and products between the local
// retail system and external platforms (storefront, accounting, warehouse).
//
// Key concepts:
//   - Connector: Port for fetching and pushing records on one external platform
//   - Canonical entities: Platform-neutral Order, Customer and Product shapes
//   - FieldMapping: Declarative source-to-target field configuration
//   - IDMapping: Correlation between identifiers in two systems
//   - SyncState: One orchestrated run with counters and a resume checkpoint
//   - SyncConflict: A field that changed on both sides of a two-way sync
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
