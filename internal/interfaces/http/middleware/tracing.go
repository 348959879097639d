// Package middleware provides the HTTP middleware chain of the sync engine API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erp/syncengine/internal/infrastructure/telemetry"
)

type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths get no span. Health checks would otherwise dominate sampled traces.
	SkipPaths []string
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "syncengine",
		Enabled:     true,
		SkipPaths:   healthPaths,
	}
}

func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig starts one server span per request, named after the
// matched route. Tenant and caller are attached later by
// TracingAttributeInjector.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	var opts []otelgin.Option
	if len(cfg.SkipPaths) > 0 {
		skip := slices.Clone(cfg.SkipPaths)
		opts = append(opts, otelgin.WithFilter(func(r *http.Request) bool {
			return !slices.Contains(skip, r.URL.Path)
		}))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// TracingAttributeInjector must run after the JWT and tenant middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			for key, value := range map[string]string{
				"request_id":               GetRequestID(c),
				telemetry.SpanAttrTenantID: GetTenantID(c),
				"caller":                   GetJWTSubject(c),
			} {
				if value != "" {
					telemetry.SetAttribute(span, key, value)
				}
			}
		}
		c.Next()
	}
}

// SpanErrorMarker fails the request span on 4xx and 5xx. otelgin only does
// so for 5xx. Place it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		span := trace.SpanFromContext(c.Request.Context())
		if status < http.StatusBadRequest || !span.IsRecording() {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		telemetry.SetAttribute(span, "http.status_code", status)
	}
}
