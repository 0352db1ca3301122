// Package integration runs the billing services against a real PostgreSQL
// started with testcontainers and migrated with the embedded schema.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/erp/billing/internal/infrastructure/migration"
	"github.com/erp/billing/migrations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated database for one test
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewTestDB returns a connection to the package's shared container, starting
// and migrating it on first use. Tests isolate themselves by tenant id, so
// nothing is truncated between them.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("billing_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		_ = sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, DSN: sharedContainerDSN, t: t}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return tdb
}

// CleanupSharedContainer terminates the shared container; call it from TestMain
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// CreateCompany registers the tenant's own company in jurisdiction
func (tdb *TestDB) CreateCompany(tenantID uuid.UUID, jurisdiction string) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO companies (tenant_id, name, gstin, jurisdiction, email, updated_at)
		VALUES (?, ?, '', ?, 'billing@example.com', NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET jurisdiction = EXCLUDED.jurisdiction
	`, tenantID, fmt.Sprintf("Company %s", tenantID.String()[:8]), jurisdiction).Error
	require.NoError(tdb.t, err, "Failed to create company")
}

// CreateCounterparty inserts a CLIENT or VENDOR and returns its id
func (tdb *TestDB) CreateCounterparty(tenantID uuid.UUID, kind, jurisdiction string) uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	err := tdb.DB.Exec(`
		INSERT INTO counterparties (id, tenant_id, kind, name, email, gstin, jurisdiction, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', '', ?, NOW(), NOW())
	`, id, tenantID, kind, fmt.Sprintf("%s %s", kind, id.String()[:8]), jurisdiction).Error
	require.NoError(tdb.t, err, "Failed to create counterparty")
	return id
}

// CreateItem inserts an active catalog item and returns its id
func (tdb *TestDB) CreateItem(tenantID uuid.UUID, price, taxRate string) uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	err := tdb.DB.Exec(`
		INSERT INTO catalog_items (id, tenant_id, code, name, hsn_code, unit, price, tax_rate, cess_rate, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, '8471', 'pcs', ?, ?, 0, TRUE, NOW(), NOW())
	`, id, tenantID, "ITEM-"+id.String()[:8], "Item "+id.String()[:8],
		decimal.RequireFromString(price), decimal.RequireFromString(taxRate)).Error
	require.NoError(tdb.t, err, "Failed to create catalog item")
	return id
}

// CountOutbox counts outbox rows of eventType for tenantID
func (tdb *TestDB) CountOutbox(tenantID uuid.UUID, eventType string) int64 {
	tdb.t.Helper()

	var n int64
	err := tdb.DB.Table("outbox_events").
		Where("tenant_id = ? AND event_type = ?", tenantID, eventType).
		Count(&n).Error
	require.NoError(tdb.t, err)
	return n
}
