package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(t *testing.T, verifier *auth.TokenVerifier) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Authenticate(AuthConfig{
		Verifier:  verifier,
		SkipPaths: []string{"/health"},
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/me", func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		require.True(t, ok)
		fromCtx, ok := logger.GetPrincipal(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, p, fromCtx)
		c.JSON(http.StatusOK, gin.H{"tenant_id": p.TenantID, "user_id": p.UserID})
	})
	return r
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func TestAuthenticate(t *testing.T) {
	verifier := auth.NewTokenVerifier(config.JWTConfig{Secret: "test-secret-key-at-least-32-bytes", Issuer: "billing"})
	r := authRouter(t, verifier)
	principal := shared.NewPrincipal(uuid.New(), uuid.New())

	valid, err := verifier.Issue(principal, "clerk", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Issue(principal, "clerk", -time.Minute)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, principal.TenantID.String(), body["tenant_id"])
		assert.Equal(t, principal.UserID.String(), body["user_id"])
	})

	t.Run("skip path", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "ERR_UNAUTHORIZED"},
		{"wrong scheme", "Basic " + valid, "ERR_UNAUTHORIZED"},
		{"garbage", "Bearer not-a-jwt", "ERR_TOKEN_INVALID"},
		{"expired", "Bearer " + expired, "ERR_TOKEN_EXPIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set(RequestIDHeader, "req-auth")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, "req-auth", body.Error.RequestID)
		})
	}
}

func TestGetPrincipal_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetPrincipal(c)
	assert.False(t, ok)
}
