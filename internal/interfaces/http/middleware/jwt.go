package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/syncengine/internal/infrastructure/auth"
	"github.com/erp/syncengine/internal/infrastructure/logger"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
)

const (
	JWTClaimsKey   = "jwt_claims"
	JWTTenantIDKey = "jwt_tenant_id"
	JWTSubjectKey  = "jwt_subject"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

var errMissingToken = errors.New("missing bearer token")

// JWTMiddlewareConfig configures bearer token authentication of API calls.
type JWTMiddlewareConfig struct {
	TokenService     *auth.TokenService
	SkipPaths        []string
	SkipPathPrefixes []string
	// Optional admits requests without an Authorization header so the tenant
	// middleware can read X-Tenant-ID. Bad tokens are still rejected.
	Optional bool
	Logger   *zap.Logger
}

func DefaultJWTConfig(tokens *auth.TokenService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		TokenService:     tokens,
		SkipPaths:        healthPaths,
		SkipPathPrefixes: publicPrefixes,
	}
}

func JWTAuthMiddleware(tokens *auth.TokenService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(tokens))
}

// JWTAuthMiddlewareWithConfig validates the bearer token and stores its
// claims, tenant and subject on the context.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, cfg.SkipPaths, cfg.SkipPathPrefixes) {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if header == "" && cfg.Optional {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || token == "" {
			rejectToken(c, cfg.Logger, errMissingToken)
			return
		}
		claims, err := cfg.TokenService.Validate(token)
		if err != nil {
			rejectToken(c, cfg.Logger, err)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTTenantIDKey, claims.TenantID)
		c.Set(JWTSubjectKey, claims.Subject)
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), claims.TenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Token accepted",
				zap.String("tenant_id", claims.TenantID),
				zap.String("subject", claims.Subject),
			)
		}
		c.Next()
	}
}

// rejectToken answers 401. The reason is logged, the response only says
// which class of failure it was.
func rejectToken(c *gin.Context, log *zap.Logger, err error) {
	if log != nil {
		log.Warn("Token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, message = dto.ErrCodeTokenInvalid, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingTenantID):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// RequireScope rejects tokens without scope. Requests admitted on the
// development tenant header carry no claims and pass.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := GetJWTClaims(c); claims != nil && !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Token lacks the "+scope+" scope", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

func GetJWTClaims(c *gin.Context) *auth.Claims {
	claims, _ := c.Value(JWTClaimsKey).(*auth.Claims)
	return claims
}

func GetJWTTenantID(c *gin.Context) string {
	return c.GetString(JWTTenantIDKey)
}

// GetJWTSubject returns the calling system named by the token.
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(JWTSubjectKey)
}
