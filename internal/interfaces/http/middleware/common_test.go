package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/erp/syncengine/internal/infrastructure/logger"
)

func TestCORSWithConfig(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCredHdr string
	}{
		{"allowed origin", []string{"https://ops.example.com"}, http.MethodGet, "https://ops.example.com", http.StatusOK, "https://ops.example.com", "true"},
		{"unlisted origin", []string{"https://ops.example.com"}, http.MethodGet, "https://evil.example.com", http.StatusOK, "", ""},
		{"empty whitelist", nil, http.MethodGet, "https://ops.example.com", http.StatusOK, "", ""},
		{"wildcard drops credentials", []string{"*"}, http.MethodGet, "https://any.example.com", http.StatusOK, "*", ""},
		{"preflight allowed", []string{"https://ops.example.com"}, http.MethodOptions, "https://ops.example.com", http.StatusNoContent, "https://ops.example.com", "true"},
		{"preflight unlisted still 204", []string{"https://ops.example.com"}, http.MethodOptions, "https://evil.example.com", http.StatusNoContent, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowOrigins = tt.origins

			router := gin.New()
			router.Use(CORSWithConfig(cfg))
			router.GET("/api/v1/syncs", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/api/v1/syncs", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredHdr, rec.Header().Get("Access-Control-Allow-Credentials"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "43200", rec.Header().Get("Access-Control-Max-Age"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var fromCtx, fromLogger string
	router.GET("/x", func(c *gin.Context) {
		fromCtx = c.GetString(RequestIDKey)
		fromLogger = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("propagates inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(RequestIDKey, "req-42")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", rec.Header().Get(RequestIDKey))
		assert.Equal(t, "req-42", fromCtx)
		assert.Equal(t, "req-42", fromLogger)
	})

	t.Run("generates id when missing or oversized", func(t *testing.T) {
		for _, inbound := range []string{"", strings.Repeat("a", MaxRequestIDLength+1)} {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if inbound != "" {
				req.Header.Set(RequestIDKey, inbound)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			_, err := uuid.Parse(rec.Header().Get(RequestIDKey))
			assert.NoError(t, err)
			assert.Equal(t, rec.Header().Get(RequestIDKey), fromCtx)
		}
	})
}

func TestSecureWithConfig(t *testing.T) {
	serve := func(cfg SecurityConfig) http.Header {
		router := gin.New()
		router.Use(SecureWithConfig(cfg))
		router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		return rec.Header()
	}

	h := serve(DefaultSecurityConfig())
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", h.Get("Content-Security-Policy"))
	assert.Empty(t, h.Get("Strict-Transport-Security"))

	h = serve(SecurityConfig{HSTSEnabled: true, HSTSMaxAge: int((24 * time.Hour).Seconds())})
	assert.Equal(t, "max-age=86400; includeSubDomains", h.Get("Strict-Transport-Security"))
	assert.Empty(t, h.Get("Content-Security-Policy"))
}
