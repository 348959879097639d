package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

// ---------------------------------------------------------------------------
// Credential
// ---------------------------------------------------------------------------

// Credential is a decrypted per-tenant platform credential. It lives in memory
// only; at rest it is stored as a SealedCredential.
type Credential struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Platform     SystemCode
	Secret       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	// Metadata holds non-secret settings such as client_id or account_id
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCredential creates a credential for a tenant and platform
func NewCredential(tenantID uuid.UUID, platform SystemCode, secret string) (*Credential, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !platform.IsValid() {
		return nil, ErrInvalidSystemCode
	}
	now := time.Now()
	return &Credential{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Platform:  platform,
		Secret:    secret,
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsExpired reports whether the access token expires within skew of now
func (c *Credential) IsExpired(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(skew).Before(*c.ExpiresAt)
}

// RotateTokens replaces the OAuth tokens after a refresh
func (c *Credential) RotateTokens(accessToken, refreshToken string, expiresAt time.Time) {
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	if !expiresAt.IsZero() {
		c.ExpiresAt = &expiresAt
	}
	c.UpdatedAt = time.Now()
}

// MetadataValue returns a metadata entry or def
func (c *Credential) MetadataValue(key, def string) string {
	if v, ok := c.Metadata[key]; ok && v != "" {
		return v
	}
	return def
}

// String never renders secrets
func (c *Credential) String() string {
	return fmt.Sprintf("Credential{tenant=%s platform=%s secret=%s access_token=%s refresh_token=%s}",
		c.TenantID, c.Platform, redact(c.Secret), redact(c.AccessToken), redact(c.RefreshToken))
}

// GoString never renders secrets
func (c *Credential) GoString() string {
	return c.String()
}

// MarshalLogObject implements zapcore.ObjectMarshaler without the secrets
func (c *Credential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("tenant_id", c.TenantID.String())
	enc.AddString("platform", string(c.Platform))
	enc.AddBool("has_secret", c.Secret != "")
	enc.AddBool("has_access_token", c.AccessToken != "")
	enc.AddBool("has_refresh_token", c.RefreshToken != "")
	if c.ExpiresAt != nil {
		enc.AddTime("expires_at", *c.ExpiresAt)
	}
	return nil
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return "[REDACTED]"
}

// SealedCredential is the at-rest form of a Credential
type SealedCredential struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Platform     SystemCode
	Secret       []byte
	AccessToken  []byte
	RefreshToken []byte
	ExpiresAt    *time.Time
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// Cipher is the symmetric encryption primitive used for credentials at rest.
// aad binds a ciphertext to its owner so blobs cannot be swapped between rows.
type Cipher interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(ciphertext, aad []byte) ([]byte, error)
}

// CredentialRepository persists sealed credentials
type CredentialRepository interface {
	FindByPlatform(ctx context.Context, tenantID uuid.UUID, platform SystemCode) (*SealedCredential, error)
	Save(ctx context.Context, cred *SealedCredential) error
	Delete(ctx context.Context, tenantID uuid.UUID, platform SystemCode) error
}

// CredentialProvider is what connectors use to obtain and rotate credentials
type CredentialProvider interface {
	Credential(ctx context.Context, tenantID uuid.UUID, platform SystemCode) (*Credential, error)
	UpdateTokens(ctx context.Context, tenantID uuid.UUID, platform SystemCode, accessToken, refreshToken string, expiresAt time.Time) error
}
