package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/logger"
)

// StoreCredentialCommand stores a platform credential
type StoreCredentialCommand struct {
	Platform     integration.SystemCode
	Secret       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Metadata     map[string]string
}

// CredentialView describes a stored credential without its secrets
type CredentialView struct {
	Platform        integration.SystemCode `json:"platform"`
	HasSecret       bool                   `json:"has_secret"`
	HasAccessToken  bool                   `json:"has_access_token"`
	HasRefreshToken bool                   `json:"has_refresh_token"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
	Metadata        map[string]string      `json:"metadata,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func newCredentialView(c *integration.Credential) *CredentialView {
	return &CredentialView{
		Platform:        c.Platform,
		HasSecret:       c.Secret != "",
		HasAccessToken:  c.AccessToken != "",
		HasRefreshToken: c.RefreshToken != "",
		ExpiresAt:       c.ExpiresAt,
		Metadata:        c.Metadata,
		UpdatedAt:       c.UpdatedAt,
	}
}

// CredentialService stores and inspects platform credentials
type CredentialService struct {
	store  CredentialStore
	logger *zap.Logger
}

// NewCredentialService creates a CredentialService
func NewCredentialService(store CredentialStore, logger *zap.Logger) *CredentialService {
	return &CredentialService{store: store, logger: logger}
}

// Store encrypts and saves a credential, replacing any previous one
func (s *CredentialService) Store(ctx context.Context, tenantID uuid.UUID, cmd StoreCredentialCommand) (*CredentialView, error) {
	cred, err := integration.NewCredential(tenantID, cmd.Platform, cmd.Secret)
	if err != nil {
		return nil, err
	}
	cred.AccessToken = cmd.AccessToken
	cred.RefreshToken = cmd.RefreshToken
	cred.ExpiresAt = cmd.ExpiresAt
	for k, v := range cmd.Metadata {
		cred.Metadata[k] = v
	}
	if err := s.store.Store(ctx, cred); err != nil {
		return nil, err
	}
	s.logger.Info("Credential stored",
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", string(cmd.Platform)),
		logger.Secret("secret", cmd.Secret),
	)
	return newCredentialView(cred), nil
}

// Get describes the stored credential of a platform
func (s *CredentialService) Get(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) (*CredentialView, error) {
	cred, err := s.store.Credential(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	return newCredentialView(cred), nil
}

// Delete removes a platform credential
func (s *CredentialService) Delete(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) error {
	if !platform.IsValid() {
		return integration.ErrInvalidSystemCode
	}
	return s.store.Delete(ctx, tenantID, platform)
}
