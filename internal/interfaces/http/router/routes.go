package router

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/syncengine/internal/infrastructure/auth"
	"github.com/erp/syncengine/internal/interfaces/http/handler"
	"github.com/erp/syncengine/internal/interfaces/http/middleware"
)

// Handlers bundles the HTTP handlers served by the sync engine
type Handlers struct {
	Connectors  *handler.ConnectorHandler
	Credentials *handler.CredentialHandler
	Syncs       *handler.SyncHandler
	Conflicts   *handler.ConflictHandler
	Mappings    *handler.MappingHandler
	Schedules   *handler.ScheduleHandler
	Webhooks    *handler.WebhookHandler
	System      *handler.SystemHandler
}

// RegisterPublic mounts the routes that live outside the versioned API:
// health checks and inbound platform webhooks. Webhooks authenticate by
// signature, not by bearer token.
func RegisterPublic(engine *gin.Engine, h Handlers) {
	engine.GET("/health", h.System.Health)
	engine.POST("/webhooks/:platform/:tenant_id", h.Webhooks.Receive)
}

// DomainGroups builds the versioned API groups. Each route is guarded by
// the scope its operation needs.
func DomainGroups(h Handlers) []*DomainGroup {
	read := middleware.RequireScope(auth.ScopeSyncRead)
	write := middleware.RequireScope(auth.ScopeSyncWrite)
	configure := middleware.RequireScope(auth.ScopeConfigure)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)

	connectors := NewDomainGroup("connectors", "/connectors")
	connectors.GET("", read, h.Connectors.List)
	connectors.GET("/:id", read, h.Connectors.Get)
	connectors.PUT("/:id", configure, h.Connectors.Upsert)
	connectors.DELETE("/:id", configure, h.Connectors.Delete)
	connectors.POST("/:id/test", configure, h.Connectors.Test)
	connectors.POST("/:id/retry", write, h.Syncs.RetryAll)
	connectors.Group("connector-failed-records", "/:id/failed-records").
		GET("", read, h.Syncs.ListFailedRecords)

	credentials := NewDomainGroup("credentials", "/credentials")
	credentials.Use(middleware.RequireScope(auth.ScopeCredential))
	credentials.PUT("/:platform", h.Credentials.Store)
	credentials.GET("/:platform", h.Credentials.Get)
	credentials.DELETE("/:platform", h.Credentials.Delete)

	syncs := NewDomainGroup("syncs", "/syncs")
	syncs.POST("", write, h.Syncs.Trigger)
	syncs.GET("", read, h.Syncs.List)
	syncs.GET("/:id", read, h.Syncs.Get)
	syncs.POST("/:id/cancel", write, h.Syncs.Cancel)
	syncs.POST("/:id/resume", write, h.Syncs.Resume)

	failed := NewDomainGroup("failed-records", "/failed-records")
	failed.POST("/:id/retry", write, h.Syncs.RetryFailedRecord)

	conflicts := NewDomainGroup("conflicts", "/conflicts")
	conflicts.GET("", read, h.Conflicts.List)
	conflicts.GET("/:id", read, h.Conflicts.Get)
	conflicts.POST("/:id/resolve", write, h.Conflicts.Resolve)

	mappings := NewDomainGroup("mappings", "/mappings")
	mappings.GET("", read, h.Mappings.List)
	mappings.POST("", configure, h.Mappings.Create)
	mappings.POST("/preview", read, h.Mappings.Preview)
	mappings.GET("/export", read, h.Mappings.Export)
	mappings.POST("/import", configure, h.Mappings.Import)
	mappings.GET("/:id", read, h.Mappings.Get)
	mappings.PUT("/:id", configure, h.Mappings.Update)
	mappings.DELETE("/:id", configure, h.Mappings.Delete)

	schedules := NewDomainGroup("schedules", "/schedules")
	schedules.GET("", read, h.Schedules.List)
	schedules.PUT("", configure, h.Schedules.Upsert)
	schedules.GET("/:id", read, h.Schedules.Get)
	schedules.DELETE("/:id", configure, h.Schedules.Delete)
	schedules.POST("/:id/acknowledge", configure, h.Schedules.Acknowledge)

	return []*DomainGroup{system, connectors, credentials, syncs, failed, conflicts, mappings, schedules}
}
