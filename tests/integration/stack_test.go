package integration

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	syncapp "github.com/erp/syncengine/internal/application/integration"
	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/domain/mapping"
	"github.com/erp/syncengine/internal/infrastructure/auth"
	"github.com/erp/syncengine/internal/infrastructure/cache"
	"github.com/erp/syncengine/internal/infrastructure/config"
	"github.com/erp/syncengine/internal/infrastructure/connector"
	"github.com/erp/syncengine/internal/infrastructure/lock"
	"github.com/erp/syncengine/internal/infrastructure/notify"
	"github.com/erp/syncengine/internal/infrastructure/persistence"
	"github.com/erp/syncengine/internal/infrastructure/scheduler"
	"github.com/erp/syncengine/internal/infrastructure/storage"
	"github.com/erp/syncengine/internal/infrastructure/vault"
	"github.com/erp/syncengine/internal/interfaces/http/handler"
	"github.com/erp/syncengine/internal/interfaces/http/middleware"
	"github.com/erp/syncengine/internal/interfaces/http/router"
)

const testJWTSecret = "integration-test-secret-with-enough-bytes"

// syncStack is the server wiring over a test database: Gorm repositories,
// the local store and an in-memory warehouse bucket behind the connectors,
// and a running worker pool.
type syncStack struct {
	db         *TestDB
	configs    *persistence.GormConnectorConfigRepository
	states     *persistence.GormSyncStateRepository
	idMappings *persistence.GormIDMappingRepository
	local      *persistence.GormLocalStore
	bucket     *storage.MemoryObjectStore
	orch       *syncapp.Orchestrator
	queue      *scheduler.RunQueue
	tokens     *auth.TokenService
	engine     *gin.Engine
}

func newSyncStack(t *testing.T, db *TestDB) *syncStack {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	s := &syncStack{
		db:         db,
		configs:    persistence.NewGormConnectorConfigRepository(db.DB),
		states:     persistence.NewGormSyncStateRepository(db.DB),
		idMappings: persistence.NewGormIDMappingRepository(db.DB),
		local:      persistence.NewGormLocalStore(db.DB),
		bucket:     storage.NewMemoryObjectStore(),
	}
	fieldMappings := persistence.NewGormFieldMappingRepository(db.DB)
	failures := persistence.NewGormFailedRecordRepository(db.DB)
	conflicts := persistence.NewGormSyncConflictRepository(db.DB)
	schedules := persistence.NewGormSyncScheduleRepository(db.DB)

	cipher, err := vault.NewCipher(make([]byte, 32))
	require.NoError(t, err)
	credentials := vault.NewStore(persistence.NewGormCredentialRepository(db.DB), cipher, logger)

	registry := connector.NewRegistry(
		connector.NewLocal(s.local),
		connector.NewWarehouse(s.bucket, connector.WarehouseConfig{Prefix: "staging"}, connector.WithConnectorLogger(logger)),
	)
	notifier := notify.NewLogNotifier(logger)

	s.queue, err = scheduler.NewRunQueue(scheduler.RunQueueConfig{Workers: 2, QueueSize: 16, JobTimeout: time.Minute}, nil, logger)
	require.NoError(t, err)

	engine := mapping.NewEngine(nil)
	idMapper := syncapp.NewIDMapper(s.idMappings, logger)
	s.orch = syncapp.NewOrchestrator(syncapp.OrchestratorDeps{
		Connectors: registry,
		Configs:    s.configs,
		Mappings:   fieldMappings,
		States:     s.states,
		Failures:   failures,
		Conflicts:  conflicts,
		IDMapper:   idMapper,
		Resolver:   syncapp.NewDependencyResolver(idMapper, logger),
		Engine:     engine,
		Queue:      s.queue,
		Locker:     lock.NewLocalLocker(),
		Notifier:   notifier,
	}, syncapp.OrchestratorConfig{Workers: 2, PageSize: 2, LockTTL: time.Minute}, logger)
	s.queue.SetExecutor(s.orch)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.queue.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = s.queue.Stop(stopCtx)
		cancel()
	})

	mappingService, err := syncapp.NewMappingService(fieldMappings, engine, idMapper, logger)
	require.NoError(t, err)
	scheduleService := syncapp.NewScheduleService(syncapp.ScheduleServiceConfig{FailureThreshold: 3},
		schedules, s.configs, s.orch, notifier, logger)
	s.orch.AddObserver(scheduleService)
	webhookService, err := syncapp.NewWebhookService(syncapp.WebhookServiceConfig{},
		s.configs, persistence.NewGormWebhookEventRepository(db.DB), cache.NewIdempotencyStore(nil, logger),
		s.orch, syncapp.NoopMetrics, logger)
	require.NoError(t, err)
	s.orch.AddObserver(webhookService)

	handlers := router.Handlers{
		Connectors:  handler.NewConnectorHandler(syncapp.NewConnectorService(s.configs, registry, logger)),
		Credentials: handler.NewCredentialHandler(syncapp.NewCredentialService(credentials, logger)),
		Syncs:       handler.NewSyncHandler(s.orch, syncapp.NewRetryService(failures, s.orch, logger)),
		Conflicts:   handler.NewConflictHandler(syncapp.NewConflictService(conflicts, registry, idMapper, logger)),
		Mappings:    handler.NewMappingHandler(mappingService),
		Schedules:   handler.NewScheduleHandler(scheduleService),
		Webhooks:    handler.NewWebhookHandler(webhookService),
		System:      handler.NewSystemHandler(),
	}

	s.tokens = auth.NewTokenService(config.AuthConfig{JWTSecret: testJWTSecret, Issuer: "syncengine-test", TokenTTL: time.Hour})
	middleware.SetupValidator()
	s.engine = gin.New()
	s.engine.Use(middleware.RequestID())
	r := router.NewRouter(s.engine)
	r.Use(middleware.JWTAuthMiddleware(s.tokens), middleware.TenantMiddleware())
	router.RegisterPublic(s.engine, handlers)
	for _, g := range router.DomainGroups(handlers) {
		r.Register(g)
	}
	r.Setup()
	return s
}

// token issues a bearer token for tenantID with the given scopes
func (s *syncStack) token(t *testing.T, tenantID uuid.UUID, scopes ...string) string {
	t.Helper()
	issued, err := s.tokens.Issue(tenantID, "integration-test", scopes)
	require.NoError(t, err)
	return issued.Token
}

// connector saves an enabled local to warehouse connector
func (s *syncStack) connector(t *testing.T, tenantID uuid.UUID) *integration.ConnectorConfig {
	t.Helper()
	cfg, err := integration.NewConnectorConfig(tenantID, "local to warehouse", integration.SystemLocal, integration.SystemWarehouse)
	require.NoError(t, err)
	require.NoError(t, s.configs.Save(context.Background(), cfg))
	return cfg
}
