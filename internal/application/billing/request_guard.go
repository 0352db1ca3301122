package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestGuard claims client supplied idempotency keys so a retried request
// cannot apply the same financial change twice. A claim is released when the
// guarded operation fails, which makes a rolled back request safe to retry
// with the same key.
type RequestGuard struct {
	store  shared.IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRequestGuard creates a guard backed by store. A nil store disables it.
func NewRequestGuard(store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *RequestGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &RequestGuard{store: store, ttl: ttl, logger: logger}
}

// Run executes fn once per (tenant, operation, key). An empty key runs fn unguarded.
func (g *RequestGuard) Run(ctx context.Context, tenantID uuid.UUID, operation, key string, fn func() error) error {
	if g == nil || g.store == nil || key == "" {
		return fn()
	}

	claim := fmt.Sprintf("request:%s:%s:%s", tenantID, operation, key)
	claimed, err := g.store.MarkProcessed(ctx, claim, g.ttl)
	if err != nil {
		return fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		return shared.ErrDuplicateRequest
	}

	if err := fn(); err != nil {
		// the request context may already be cancelled
		if relErr := g.store.Release(context.WithoutCancel(ctx), claim); relErr != nil {
			g.logger.Warn("Failed to release idempotency key",
				zap.String("key", claim),
				zap.Error(relErr))
		}
		return err
	}
	return nil
}
