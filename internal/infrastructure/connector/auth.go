package connector

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/syncengine/internal/domain/integration"
)

// defaultExpirySkew refreshes tokens slightly before they expire
const defaultExpirySkew = time.Minute

// TokenGrant is the result of a token refresh
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RefreshFunc exchanges a credential for a new access token
type RefreshFunc func(ctx context.Context, cred *integration.Credential) (*TokenGrant, error)

// TokenSource hands out access tokens for one platform and refreshes them
// under a per-tenant single-flight guard, so concurrent callers that all see
// an expired token trigger at most one refresh.
type TokenSource struct {
	platform integration.SystemCode
	creds    integration.CredentialProvider
	refresh  RefreshFunc
	group    singleflight.Group
	skew     time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewTokenSource creates a TokenSource
func NewTokenSource(platform integration.SystemCode, creds integration.CredentialProvider, refresh RefreshFunc, logger *zap.Logger) *TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSource{
		platform: platform,
		creds:    creds,
		refresh:  refresh,
		skew:     defaultExpirySkew,
		now:      time.Now,
		logger:   logger,
	}
}

// Credential loads the tenant's credential, classifying a missing one as an auth error
func (s *TokenSource) Credential(ctx context.Context, tenantID uuid.UUID) (*integration.Credential, error) {
	cred, err := s.creds.Credential(ctx, tenantID, s.platform)
	if err != nil {
		if errors.Is(err, integration.ErrCredentialNotFound) {
			return nil, integration.NewAuthError("no credential stored for "+string(s.platform), err)
		}
		return nil, err
	}
	return cred, nil
}

// Token returns a valid access token, refreshing it first when expired
func (s *TokenSource) Token(ctx context.Context, tenantID uuid.UUID) (string, error) {
	cred, err := s.Credential(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !cred.IsExpired(s.now(), s.skew) {
		return cred.AccessToken, nil
	}
	return s.Refresh(ctx, tenantID)
}

// Refresh obtains a new access token and persists the rotated tokens
func (s *TokenSource) Refresh(ctx context.Context, tenantID uuid.UUID) (string, error) {
	if s.refresh == nil {
		return "", integration.NewAuthError(string(s.platform)+" access token expired and cannot be refreshed", nil)
	}

	v, err, shared := s.group.Do(tenantID.String(), func() (any, error) {
		cred, err := s.Credential(ctx, tenantID)
		if err != nil {
			return "", err
		}
		grant, err := s.refresh(ctx, cred)
		if err != nil {
			if integration.IsTransient(err) {
				return "", err
			}
			return "", integration.NewAuthError(string(s.platform)+" token refresh rejected", err)
		}
		if err := s.creds.UpdateTokens(ctx, tenantID, s.platform, grant.AccessToken, grant.RefreshToken, grant.ExpiresAt); err != nil {
			return "", err
		}
		s.logger.Info("Access token refreshed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(s.platform)),
			zap.Time("expires_at", grant.ExpiresAt),
		)
		return grant.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug("Joined in-flight token refresh",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(s.platform)),
		)
	}
	return v.(string), nil
}
