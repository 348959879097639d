package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/erp/syncengine/internal/domain/integration"
)

// memCredentials is an in-memory integration.CredentialProvider
type memCredentials struct {
	mu      sync.Mutex
	creds   map[integration.SystemCode]*integration.Credential
	updates int
}

func newMemCredentials(creds ...*integration.Credential) *memCredentials {
	m := &memCredentials{creds: make(map[integration.SystemCode]*integration.Credential)}
	for _, c := range creds {
		m.creds[c.Platform] = c
	}
	return m
}

func (m *memCredentials) Credential(_ context.Context, tenantID uuid.UUID, platform integration.SystemCode) (*integration.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[platform]
	if !ok || c.TenantID != tenantID {
		return nil, integration.ErrCredentialNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCredentials) UpdateTokens(_ context.Context, _ uuid.UUID, platform integration.SystemCode, access, refresh string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.creds[platform].RotateTokens(access, refresh, expiresAt)
	return nil
}

func (m *memCredentials) accessToken(platform integration.SystemCode) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds[platform].AccessToken
}

func testCredential(tenantID uuid.UUID, platform integration.SystemCode, access string, expiresAt time.Time) *integration.Credential {
	return &integration.Credential{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Platform:     platform,
		Secret:       "client-secret-0123456789",
		AccessToken:  access,
		RefreshToken: "refresh-1",
		ExpiresAt:    &expiresAt,
		Metadata:     map[string]string{"client_id": "client-42", "account_id": "acct-7"},
	}
}

// fastRetry keeps retry tests quick
func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *countingMetrics) RecordRequest(_ context.Context, _ integration.SystemCode, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body := make(map[string]any)
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}
