package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures database spans
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound values in db.statement. Never enable in production.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns the production defaults
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin and flags slow statements
// on their spans and in the log
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.SlowQueryThresh
	if threshold <= 0 {
		threshold = DefaultDBTracingConfig().SlowQueryThresh
	}
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		flagSlowQuery(tx, threshold, logger)
	}
	if err := eachCallback(db, "slow_query", before, after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", threshold))
	return nil
}

func flagSlowQuery(tx *gorm.DB, threshold time.Duration, logger *zap.Logger) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < threshold {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.duration_ms", elapsed.Milliseconds()))
	logger.Warn("Slow query",
		zap.String("table", tx.Statement.Table),
		zap.Duration("duration", elapsed),
		zap.String("trace_id", GetTraceID(ctx)))
}

// eachCallback registers before/after hooks around every GORM processor
func eachCallback(db *gorm.DB, name string, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	hooks := []struct {
		op        string
		beforeErr error
		afterErr  error
	}{
		{"create",
			cb.Create().Before("gorm:create").Register(name+":before_create", before),
			cb.Create().After("gorm:create").Register(name+":after_create", after)},
		{"query",
			cb.Query().Before("gorm:query").Register(name+":before_query", before),
			cb.Query().After("gorm:query").Register(name+":after_query", after)},
		{"update",
			cb.Update().Before("gorm:update").Register(name+":before_update", before),
			cb.Update().After("gorm:update").Register(name+":after_update", after)},
		{"delete",
			cb.Delete().Before("gorm:delete").Register(name+":before_delete", before),
			cb.Delete().After("gorm:delete").Register(name+":after_delete", after)},
		{"row",
			cb.Row().Before("gorm:row").Register(name+":before_row", before),
			cb.Row().After("gorm:row").Register(name+":after_row", after)},
		{"raw",
			cb.Raw().Before("gorm:raw").Register(name+":before_raw", before),
			cb.Raw().After("gorm:raw").Register(name+":after_raw", after)},
	}
	for _, h := range hooks {
		if h.beforeErr != nil {
			return h.beforeErr
		}
		if h.afterErr != nil {
			return h.afterErr
		}
	}
	return nil
}
