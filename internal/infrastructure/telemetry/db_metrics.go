package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records statement latency and connection pool usage
type DBMetrics struct {
	logger        *zap.Logger
	queryDuration *Histogram
	queryErrors   *Counter
	poolInUse     *FloatGauge
	poolIdle      *FloatGauge
	stopOnce      sync.Once
	stop          chan struct{}
}

type dbMetricsStartKey struct{}

// RegisterDBMetrics instruments db and starts sampling its pool every interval
func RegisterDBMetrics(ctx context.Context, db *gorm.DB, meter metric.Meter, interval time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	m := &DBMetrics{logger: logger, stop: make(chan struct{})}
	var err error
	if m.queryDuration, err = NewHistogram(meter, "db_query_duration_seconds", "Database statement latency", "s",
		0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5); err != nil {
		return nil, err
	}
	if m.queryErrors, err = NewCounter(meter, "db_query_errors_total", "Failed database statements", "{errors}"); err != nil {
		return nil, err
	}
	if m.poolInUse, err = NewFloatGauge(meter, "db_pool_connections_in_use", "Connections in use", "{connections}"); err != nil {
		return nil, err
	}
	if m.poolIdle, err = NewFloatGauge(meter, "db_pool_connections_idle", "Idle connections", "{connections}"); err != nil {
		return nil, err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, dbMetricsStartKey{}, time.Now())
		}
	}
	if err := eachCallback(db, "db_metrics", before, m.observe); err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 15 * time.Second
	}
	go m.samplePool(ctx, db, interval)
	return m, nil
}

func (m *DBMetrics) observe(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(dbMetricsStartKey{}).(time.Time)
	if !ok {
		return
	}
	op := statementOperation(tx.Statement.SQL.String())
	attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(tx.Statement.Table)}
	m.queryDuration.RecordDuration(ctx, time.Since(start), attrs...)
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		m.queryErrors.Inc(ctx, attrs...)
	}
}

func (m *DBMetrics) samplePool(ctx context.Context, db *gorm.DB, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		m.logger.Warn("Pool metrics unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			stats := sqlDB.Stats()
			m.poolInUse.Record(ctx, float64(stats.InUse), AttrDBState.String("in_use"))
			m.poolIdle.Record(ctx, float64(stats.Idle), AttrDBState.String("idle"))
		}
	}
}

// Stop ends pool sampling
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// statementOperation returns the leading SQL verb in lower case
func statementOperation(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \n\t"); i > 0 {
		sql = sql[:i]
	}
	switch op := strings.ToLower(sql); op {
	case "select", "insert", "update", "delete":
		return op
	case "":
		return "unknown"
	default:
		return "other"
	}
}
