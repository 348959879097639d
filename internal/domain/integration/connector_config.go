package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ConnectorConfig
// ---------------------------------------------------------------------------

// EntityPolicy is the per-entity-type sync policy of a connector
type EntityPolicy struct {
	EntityType    EntityType         `json:"entity_type"`
	SourceOfTruth SystemCode         `json:"source_of_truth"`
	Strategy      ResolutionStrategy `json:"strategy"`
}

// ConnectorConfig pairs a source and a target system for a tenant
type ConnectorConfig struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	SourceSystem SystemCode
	TargetSystem SystemCode
	Direction    SyncDirection
	Policies     map[EntityType]EntityPolicy
	Filters      map[string]string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewConnectorConfig creates an enabled one-way connector config
func NewConnectorConfig(tenantID uuid.UUID, name string, source, target SystemCode) (*ConnectorConfig, error) {
	now := time.Now()
	cfg := &ConnectorConfig{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		SourceSystem: source,
		TargetSystem: target,
		Direction:    SyncDirectionOneWay,
		Policies:     make(map[EntityType]EntityPolicy),
		Filters:      make(map[string]string),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config invariants
func (c *ConnectorConfig) Validate() error {
	if c.TenantID == uuid.Nil {
		return ErrInvalidTenantID
	}
	if !c.SourceSystem.IsValid() || !c.TargetSystem.IsValid() || c.SourceSystem == c.TargetSystem {
		return ErrInvalidSystemCode
	}
	if !c.Direction.IsValid() {
		return ErrInvalidDirection
	}
	for et, p := range c.Policies {
		if !et.IsValid() {
			return ErrInvalidEntityType
		}
		if p.Strategy != "" && !p.Strategy.IsValid() {
			return ErrInvalidStrategy
		}
		if p.SourceOfTruth != "" && p.SourceOfTruth != c.SourceSystem && p.SourceOfTruth != c.TargetSystem {
			return ErrInvalidSystemCode
		}
	}
	return nil
}

// SetPolicy sets the policy for one entity type
func (c *ConnectorConfig) SetPolicy(p EntityPolicy) error {
	if !p.EntityType.IsValid() {
		return ErrInvalidEntityType
	}
	if c.Policies == nil {
		c.Policies = make(map[EntityType]EntityPolicy)
	}
	c.Policies[p.EntityType] = p
	c.UpdatedAt = time.Now()
	return c.Validate()
}

// PolicyFor returns the policy for an entity type. Without explicit
// configuration the source system is the source of truth and wins conflicts.
func (c *ConnectorConfig) PolicyFor(t EntityType) EntityPolicy {
	p, ok := c.Policies[t]
	if !ok {
		p = EntityPolicy{EntityType: t}
	}
	if p.SourceOfTruth == "" {
		p.SourceOfTruth = c.SourceSystem
	}
	if p.Strategy == "" {
		if p.SourceOfTruth == c.TargetSystem {
			p.Strategy = ResolutionTargetWins
		} else {
			p.Strategy = ResolutionSourceWins
		}
	}
	return p
}

// IsTwoWay reports whether the connector syncs in both directions
func (c *ConnectorConfig) IsTwoWay() bool {
	return c.Direction == SyncDirectionTwoWay
}

// ConnectorConfigRepository persists connector configs
type ConnectorConfigRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ConnectorConfig, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]ConnectorConfig, error)
	Save(ctx context.Context, cfg *ConnectorConfig) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
