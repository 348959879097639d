package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/domain/integration"
)

// Store is the credential vault. Secrets are sealed field by field; the
// associated data binds each blob to its tenant, platform and field so a
// ciphertext copied into another row fails to open.
type Store struct {
	repo   integration.CredentialRepository
	cipher integration.Cipher
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates a vault Store
func NewStore(repo integration.CredentialRepository, c integration.Cipher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, cipher: c, now: time.Now, logger: logger}
}

func associatedData(tenantID uuid.UUID, platform integration.SystemCode, field string) []byte {
	return []byte(tenantID.String() + "|" + string(platform) + "|" + field)
}

func (s *Store) seal(tenantID uuid.UUID, platform integration.SystemCode, field, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	out, err := s.cipher.Seal([]byte(value), associatedData(tenantID, platform, field))
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", field, err)
	}
	return out, nil
}

func (s *Store) open(tenantID uuid.UUID, platform integration.SystemCode, field string, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	plain, err := s.cipher.Open(blob, associatedData(tenantID, platform, field))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	return string(plain), nil
}

// Credential implements integration.CredentialProvider
func (s *Store) Credential(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) (*integration.Credential, error) {
	sealed, err := s.repo.FindByPlatform(ctx, tenantID, platform)
	if err != nil {
		return nil, err
	}
	cred := &integration.Credential{
		ID:        sealed.ID,
		TenantID:  sealed.TenantID,
		Platform:  sealed.Platform,
		ExpiresAt: sealed.ExpiresAt,
		Metadata:  sealed.Metadata,
		CreatedAt: sealed.CreatedAt,
		UpdatedAt: sealed.UpdatedAt,
	}
	if cred.Metadata == nil {
		cred.Metadata = make(map[string]string)
	}
	if cred.Secret, err = s.open(tenantID, platform, "secret", sealed.Secret); err != nil {
		return nil, s.openFailed(tenantID, platform, err)
	}
	if cred.AccessToken, err = s.open(tenantID, platform, "access_token", sealed.AccessToken); err != nil {
		return nil, s.openFailed(tenantID, platform, err)
	}
	if cred.RefreshToken, err = s.open(tenantID, platform, "refresh_token", sealed.RefreshToken); err != nil {
		return nil, s.openFailed(tenantID, platform, err)
	}
	return cred, nil
}

// openFailed reports an unreadable credential as an auth failure: the
// tenant has to store it again
func (s *Store) openFailed(tenantID uuid.UUID, platform integration.SystemCode, err error) error {
	s.logger.Error("Stored credential cannot be decrypted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", string(platform)),
		zap.Error(err),
	)
	return integration.NewAuthError("stored "+string(platform)+" credential cannot be decrypted", err)
}

// Store seals and saves a credential, replacing the tenant's previous one for the platform
func (s *Store) Store(ctx context.Context, cred *integration.Credential) error {
	if cred.TenantID == uuid.Nil {
		return integration.ErrInvalidTenantID
	}
	if !cred.Platform.IsValid() {
		return integration.ErrInvalidSystemCode
	}
	sealed := &integration.SealedCredential{
		ID:        cred.ID,
		TenantID:  cred.TenantID,
		Platform:  cred.Platform,
		ExpiresAt: cred.ExpiresAt,
		Metadata:  cred.Metadata,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: s.now(),
	}
	var err error
	if sealed.Secret, err = s.seal(cred.TenantID, cred.Platform, "secret", cred.Secret); err != nil {
		return err
	}
	if sealed.AccessToken, err = s.seal(cred.TenantID, cred.Platform, "access_token", cred.AccessToken); err != nil {
		return err
	}
	if sealed.RefreshToken, err = s.seal(cred.TenantID, cred.Platform, "refresh_token", cred.RefreshToken); err != nil {
		return err
	}
	if sealed.ID == uuid.Nil {
		sealed.ID = uuid.New()
	}
	if sealed.CreatedAt.IsZero() {
		sealed.CreatedAt = sealed.UpdatedAt
	}
	return s.repo.Save(ctx, sealed)
}

// UpdateTokens implements integration.CredentialProvider. An empty refresh
// token keeps the stored one.
func (s *Store) UpdateTokens(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode, accessToken, refreshToken string, expiresAt time.Time) error {
	sealed, err := s.repo.FindByPlatform(ctx, tenantID, platform)
	if err != nil {
		return err
	}
	if sealed.AccessToken, err = s.seal(tenantID, platform, "access_token", accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if sealed.RefreshToken, err = s.seal(tenantID, platform, "refresh_token", refreshToken); err != nil {
			return err
		}
	}
	if !expiresAt.IsZero() {
		sealed.ExpiresAt = &expiresAt
	}
	sealed.UpdatedAt = s.now()
	return s.repo.Save(ctx, sealed)
}

// Delete removes the tenant's credential for a platform
func (s *Store) Delete(ctx context.Context, tenantID uuid.UUID, platform integration.SystemCode) error {
	err := s.repo.Delete(ctx, tenantID, platform)
	if errors.Is(err, integration.ErrCredentialNotFound) {
		return nil
	}
	return err
}
