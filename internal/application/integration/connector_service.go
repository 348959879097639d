package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// ConnectorCommand creates or replaces a connector configuration
type ConnectorCommand struct {
	Name         string
	SourceSystem integration.SystemCode
	TargetSystem integration.SystemCode
	Direction    integration.SyncDirection
	Policies     []integration.EntityPolicy
	Filters      map[string]string
	Enabled      bool
}

// ConnectionCheck is the connectivity result of one connector end
type ConnectionCheck struct {
	System  integration.SystemCode `json:"system"`
	OK      bool                   `json:"ok"`
	Kind    integration.ErrorKind  `json:"kind,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// ConnectorService manages connector configurations
type ConnectorService struct {
	configs    integration.ConnectorConfigRepository
	connectors integration.ConnectorRegistry
	logger     *zap.Logger
}

// NewConnectorService creates a ConnectorService
func NewConnectorService(configs integration.ConnectorConfigRepository, connectors integration.ConnectorRegistry, logger *zap.Logger) *ConnectorService {
	return &ConnectorService{configs: configs, connectors: connectors, logger: logger}
}

// Upsert creates the connector with the given id or replaces its configuration
func (s *ConnectorService) Upsert(ctx context.Context, tenantID, id uuid.UUID, cmd ConnectorCommand) (*integration.ConnectorConfig, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, id)
	created := false
	switch {
	case errors.Is(err, integration.ErrConnectorNotFound):
		cfg, err = integration.NewConnectorConfig(tenantID, cmd.Name, cmd.SourceSystem, cmd.TargetSystem)
		if err != nil {
			return nil, err
		}
		cfg.ID = id
		created = true
	case err != nil:
		return nil, err
	}

	cfg.Name = cmd.Name
	cfg.SourceSystem = cmd.SourceSystem
	cfg.TargetSystem = cmd.TargetSystem
	cfg.Direction = cmd.Direction
	if cfg.Direction == "" {
		cfg.Direction = integration.SyncDirectionOneWay
	}
	cfg.Enabled = cmd.Enabled
	cfg.Filters = cmd.Filters
	if cfg.Filters == nil {
		cfg.Filters = map[string]string{}
	}
	cfg.Policies = make(map[integration.EntityType]integration.EntityPolicy, len(cmd.Policies))
	for _, p := range cmd.Policies {
		if err := cfg.SetPolicy(p); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, sys := range []integration.SystemCode{cfg.SourceSystem, cfg.TargetSystem} {
		if _, err := s.connectors.Get(sys); err != nil {
			return nil, err
		}
	}
	cfg.UpdatedAt = time.Now()

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.logger.Info("Connector configuration saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("connector_id", cfg.ID.String()),
		zap.String("source_system", string(cfg.SourceSystem)),
		zap.String("target_system", string(cfg.TargetSystem)),
		zap.String("direction", string(cfg.Direction)),
		zap.Bool("created", created),
	)
	return cfg, nil
}

// Get returns one connector configuration
func (s *ConnectorService) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.ConnectorConfig, error) {
	return s.configs.FindByID(ctx, tenantID, id)
}

// List returns the tenant's connector configurations
func (s *ConnectorService) List(ctx context.Context, tenantID uuid.UUID) ([]integration.ConnectorConfig, error) {
	return s.configs.FindAll(ctx, tenantID)
}

// Delete removes a connector configuration
func (s *ConnectorService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.configs.FindByID(ctx, tenantID, id); err != nil {
		return err
	}
	return s.configs.Delete(ctx, tenantID, id)
}

// Test checks connectivity of both ends of a connector
func (s *ConnectorService) Test(ctx context.Context, tenantID, id uuid.UUID) ([]ConnectionCheck, error) {
	cfg, err := s.configs.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	checks := make([]ConnectionCheck, 0, 2)
	for _, sys := range []integration.SystemCode{cfg.SourceSystem, cfg.TargetSystem} {
		check := ConnectionCheck{System: sys}
		conn, err := s.connectors.Get(sys)
		if err == nil {
			err = conn.TestConnection(ctx, tenantID)
		}
		if err != nil {
			check.Kind = integration.KindOf(err)
			check.Message = err.Error()
		} else {
			check.OK = true
		}
		checks = append(checks, check)
	}
	return checks, nil
}
