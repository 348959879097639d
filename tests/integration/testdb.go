// Package integration runs the sync engine against a real PostgreSQL started
// with testcontainers. The schema comes from the embedded migrations the
// server applies on startup.
package integration

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/syncengine/internal/infrastructure/logger"
	"github.com/erp/syncengine/internal/infrastructure/migration"
	"github.com/erp/syncengine/migrations"
)

// One container serves the whole package. Tests isolate themselves by
// tenant, never by truncating.
var shared struct {
	mu        sync.Mutex
	container *tcpostgres.PostgresContainer
	dsn       string
}

type TestDB struct {
	DB  *gorm.DB
	DSN string
}

// NewSharedTestDB opens a connection to the package container, starting and
// migrating it on first use. The connection closes with the test.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	dsn := sharedDSN(t)

	gl := logger.NewGormLogger(zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)), gormlogger.Warn)
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: gl, TranslateError: true})
	require.NoError(t, err, "connect")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, DSN: dsn}
}

func sharedDSN(t *testing.T) string {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.container != nil {
		return shared.dsn
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("sync123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres")
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrate(t, dsn)
	shared.container, shared.dsn = container, dsn
	return dsn
}

func migrate(t *testing.T, dsn string) {
	t.Helper()
	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Up(), "apply migrations")
	st, err := m.Status()
	require.NoError(t, err)
	require.False(t, st.Dirty)
	require.Empty(t, st.Pending, "migrations left pending")
}

func terminateShared() {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = shared.container.Terminate(ctx)
	shared.container = nil
}
