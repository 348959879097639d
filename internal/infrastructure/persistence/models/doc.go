// Package models contains the GORM persistence models for the sync engine.
// Domain types in internal/domain/integration carry no ORM tags; each model
// here owns its table mapping and converts to and from the domain type with
// a ToDomain method and a ...FromDomain constructor.
//
// IntegrationModels lists every model so AutoMigrate and the sqlite test
// helpers stay in step with the SQL migrations.
package models
