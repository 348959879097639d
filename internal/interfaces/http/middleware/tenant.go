package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/infrastructure/logger"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
)

const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig controls how the tenant of an API request is found.
type TenantMiddlewareConfig struct {
	// HeaderEnabled accepts X-Tenant-ID when no token was presented.
	HeaderEnabled bool
	SkipPaths        []string
	SkipPathPrefixes []string
	Required         bool
	Logger           *zap.Logger
}

func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths:        healthPaths,
		SkipPathPrefixes: publicPrefixes,
		Required:         true,
	}
}

func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig stores the request tenant under TenantIDKey and
// in the request logger. The token claim wins over the header.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, cfg.SkipPaths, cfg.SkipPathPrefixes) {
			c.Next()
			return
		}

		tenantID, source := resolveTenant(c, cfg.HeaderEnabled)
		switch {
		case tenantID == "" && cfg.Required:
			abortTenant(c, "Tenant identification required")
			return
		case tenantID == "":
			c.Next()
			return
		}
		if _, err := uuid.Parse(tenantID); err != nil {
			abortTenant(c, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, tenantID)
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)
		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified", zap.String("tenant_id", tenantID), zap.String("source", source))
		}
		c.Next()
	}
}

func resolveTenant(c *gin.Context, headerEnabled bool) (string, string) {
	if id := GetJWTTenantID(c); id != "" {
		return id, "jwt"
	}
	if headerEnabled {
		if id := c.GetHeader(TenantHeaderKey); id != "" {
			return id, "header"
		}
	}
	return "", ""
}

func abortTenant(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, GetRequestID(c)))
}

func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID returns uuid.Nil without error when no tenant was resolved.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	id := GetTenantID(c)
	if id == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(id)
}
