package integration

// ---------------------------------------------------------------------------
// SystemCode identifies a system taking part in a sync
// ---------------------------------------------------------------------------

// SystemCode identifies a system taking part in a sync
type SystemCode string

const (
	// SystemLocal is the local retail system
	SystemLocal SystemCode = "local"
	// SystemStorefront is the e-commerce storefront
	SystemStorefront SystemCode = "storefront"
	// SystemAccounting is the accounting platform
	SystemAccounting SystemCode = "accounting"
	// SystemWarehouse is the analytics data warehouse
	SystemWarehouse SystemCode = "warehouse"
)

// IsValid returns true if the system code is known
func (c SystemCode) IsValid() bool {
	switch c {
	case SystemLocal, SystemStorefront, SystemAccounting, SystemWarehouse:
		return true
	default:
		return false
	}
}

// String returns the string representation of SystemCode
func (c SystemCode) String() string {
	return string(c)
}

// AllSystemCodes returns every known system code
func AllSystemCodes() []SystemCode {
	return []SystemCode{SystemLocal, SystemStorefront, SystemAccounting, SystemWarehouse}
}

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType is the kind of business record being synchronized
type EntityType string

const (
	EntityTypeOrder    EntityType = "order"
	EntityTypeCustomer EntityType = "customer"
	EntityTypeProduct  EntityType = "product"
)

// IsValid returns true if the entity type is known
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeOrder, EntityTypeCustomer, EntityTypeProduct:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// Dependencies returns the entity types that must exist on the target
// before an entity of this type can be written.
func (t EntityType) Dependencies() []EntityType {
	if t == EntityTypeOrder {
		return []EntityType{EntityTypeCustomer}
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncDirection
// ---------------------------------------------------------------------------

// SyncDirection controls which side may be written during a sync
type SyncDirection string

const (
	// SyncDirectionOneWay treats the source as authoritative
	SyncDirectionOneWay SyncDirection = "one_way"
	// SyncDirectionTwoWay resolves changes on both sides per entity type
	SyncDirectionTwoWay SyncDirection = "two_way"
)

// IsValid returns true if the direction is valid
func (d SyncDirection) IsValid() bool {
	return d == SyncDirectionOneWay || d == SyncDirectionTwoWay
}

// ---------------------------------------------------------------------------
// SyncMode
// ---------------------------------------------------------------------------

// SyncMode selects how much of the source collection a run reads
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// IsValid returns true if the mode is valid
func (m SyncMode) IsValid() bool {
	return m == SyncModeFull || m == SyncModeIncremental
}

// ---------------------------------------------------------------------------
// ResolutionStrategy
// ---------------------------------------------------------------------------

// ResolutionStrategy decides the winner of a two-way conflict
type ResolutionStrategy string

const (
	ResolutionSourceWins     ResolutionStrategy = "source-wins"
	ResolutionTargetWins     ResolutionStrategy = "target-wins"
	ResolutionMostRecentWins ResolutionStrategy = "most-recent-wins"
	ResolutionManual         ResolutionStrategy = "manual"
)

// IsValid returns true if the strategy is valid
func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case ResolutionSourceWins, ResolutionTargetWins, ResolutionMostRecentWins, ResolutionManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of ResolutionStrategy
func (s ResolutionStrategy) String() string {
	return string(s)
}
