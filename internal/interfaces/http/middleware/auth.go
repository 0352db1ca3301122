package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	principalKey = "principal"
	bearerPrefix = "Bearer "
)

// Verifier validates bearer tokens
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthConfig holds configuration for Authenticate
type AuthConfig struct {
	Verifier  Verifier
	SkipPaths []string
	Logger    *zap.Logger
}

// Authenticate resolves the bearer token into the request principal. The
// principal is stored on the gin context, attached to the request logger and
// tagged on the current span.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || token == "" {
			abortUnauthorized(c, "ERR_UNAUTHORIZED", "Missing bearer token")
			return
		}

		claims, err := cfg.Verifier.Verify(token)
		if err != nil {
			code := "ERR_TOKEN_INVALID"
			if errors.Is(err, auth.ErrExpiredToken) {
				code = "ERR_TOKEN_EXPIRED"
			}
			log.Debug("bearer token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortUnauthorized(c, code, err.Error())
			return
		}
		principal, err := claims.Principal()
		if err != nil {
			abortUnauthorized(c, "ERR_TOKEN_INVALID", err.Error())
			return
		}

		ctx := c.Request.Context()
		ctx, _ = logger.WithPrincipal(ctx, logger.FromContext(ctx), principal)
		c.Request = c.Request.WithContext(ctx)
		SetPrincipal(c, principal)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("tenant.id", principal.TenantID.String()),
				attribute.String("user.id", principal.UserID.String()),
			)
		}
		c.Next()
	}
}

// SetPrincipal stores the acting principal on the gin context
func SetPrincipal(c *gin.Context, p shared.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the principal resolved by Authenticate
func GetPrincipal(c *gin.Context) (shared.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return shared.Principal{}, false
	}
	p, ok := v.(shared.Principal)
	return p, ok
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":       code,
			"message":    message,
			"request_id": GetRequestID(c),
		},
	})
}
