// Package testutil provides shared helpers for the sync engine's
// cross-package tests: deterministic IDs, polling assertions and fake
// retail records.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/erp/syncengine/internal/domain/integration"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewTestUUID generates a deterministic UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestTenantID returns a standard tenant ID for tests.
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// ContextWithTimeout creates a context with a timeout for tests.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition until it holds or timeout passes.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...interface{}) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}

	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}

// RunFinder loads a run by ID. Satisfied by the sync state repository.
type RunFinder interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncState, error)
}

// WaitForRun polls until the run reaches a terminal status and returns it.
func WaitForRun(t *testing.T, runs RunFinder, tenantID, syncID uuid.UUID, timeout time.Duration) *integration.SyncState {
	t.Helper()

	var state *integration.SyncState
	RequireEventually(t, func() bool {
		s, err := runs.FindByID(context.Background(), tenantID, syncID)
		if err != nil {
			return false
		}
		state = s
		return s.Status.IsTerminal()
	}, timeout, 20*time.Millisecond, "sync %s did not finish", syncID)
	return state
}

// Fixtures generates canonical retail documents. A fixed seed gives the
// same records on every run.
type Fixtures struct {
	faker *gofakeit.Faker
}

// NewFixtures creates a fixture generator seeded with seed
func NewFixtures(seed uint64) *Fixtures {
	return &Fixtures{faker: gofakeit.New(seed)}
}

// Customer returns a customer document as the local store holds it
func (f *Fixtures) Customer(updatedAt time.Time) map[string]any {
	return map[string]any{
		"email":      f.faker.Email(),
		"first_name": f.faker.FirstName(),
		"last_name":  f.faker.LastName(),
		"phone":      f.faker.Phone(),
		"company":    f.faker.Company(),
		"updated_at": updatedAt.UTC().Format(time.RFC3339),
	}
}

// Product returns a product document as the local store holds it
func (f *Fixtures) Product(updatedAt time.Time) map[string]any {
	return map[string]any{
		"sku":        f.faker.Regex("[A-Z]{3}-[0-9]{4}"),
		"name":       f.faker.ProductName(),
		"price":      f.faker.Price(1, 500),
		"active":     true,
		"updated_at": updatedAt.UTC().Format(time.RFC3339),
	}
}
