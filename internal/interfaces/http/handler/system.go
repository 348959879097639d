package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/erp/syncengine/internal/interfaces/http/dto"
)

// Version is set at build time with -ldflags "-X .../handler.Version=...".
var Version = "1.0.0"

const healthTimeout = 3 * time.Second

// HealthCheck checks one dependency. An Optional failure degrades the
// service instead of failing it.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checks    []HealthCheck
	systems   func() []string
}

type SystemOption func(*SystemHandler)

func WithHealthChecks(checks ...HealthCheck) SystemOption {
	return func(h *SystemHandler) { h.checks = append(h.checks, checks...) }
}

// WithConnectedSystems lists the platforms with a registered connector in
// /system/info.
func WithConnectedSystems(systems func() []string) SystemOption {
	return func(h *SystemHandler) { h.systems = systems }
}

func NewSystemHandler(opts ...SystemOption) *SystemHandler {
	h := &SystemHandler{startTime: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SystemInfoResponse
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name       string   `json:"name" example:"Sync Engine API"`
	Version    string   `json:"version" example:"1.0.0"`
	GoVersion  string   `json:"go_version" example:"go1.25.5"`
	Uptime     string   `json:"uptime" example:"1h30m45s"`
	Connectors []string `json:"connectors" example:"accounting,storefront,warehouse"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns the version, uptime and platforms with a registered connector
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:       "Sync Engine API",
		Version:    Version,
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Connectors: []string{},
	}
	if h.systems != nil {
		info.Connectors = h.systems()
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}

// HealthResponse
// @name HandlerHealthResponse
type HealthResponse struct {
	Status string            `json:"status" example:"healthy"`
	Time   string            `json:"time" example:"2026-01-23T12:00:00Z"`
	Checks map[string]string `json:"checks"`
}

// Health godoc
// @ID           healthCheck
// @Summary      Health check
// @Description  Checks the database, cache and warehouse store concurrently. Optional dependencies only degrade the result.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	failed := make([]bool, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			failed[i] = check.Check(ctx) != nil
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Checks: make(map[string]string, len(h.checks)),
	}
	for i, check := range h.checks {
		switch {
		case !failed[i]:
			resp.Checks[check.Name] = "ok"
			continue
		case check.Optional && resp.Status == "healthy":
			resp.Status = "degraded"
		case !check.Optional:
			resp.Status = "unhealthy"
		}
		resp.Checks[check.Name] = "error"
	}

	status := http.StatusOK
	if resp.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
