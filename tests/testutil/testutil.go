// Package testutil holds fixtures shared by the billing test suites: a
// sqlmock-backed gorm handle, deterministic principals, decimal helpers and
// an HTTP client for the assembled router.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB wraps a GORM database with sqlmock
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a postgres-dialect gorm handle over sqlmock. The
// connection is closed when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err, "Failed to open GORM connection")

	t.Cleanup(func() { _ = mockDB.Close() })
	return &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
}

// ExpectationsWereMet fails the test on unmet database expectations
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestTenantID is the tenant used by single-tenant tests
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// TestUserID is the user used by single-tenant tests
func TestUserID() uuid.UUID {
	return NewTestUUID("test-user")
}

// TestPrincipal acts as TestUserID within TestTenantID
func TestPrincipal() shared.Principal {
	return shared.NewPrincipal(TestTenantID(), TestUserID())
}

// NewPrincipal returns a principal in a fresh random tenant
func NewPrincipal() shared.Principal {
	return shared.NewPrincipal(uuid.New(), uuid.New())
}

// Dec parses s or panics; for literals in tests only
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// AssertMoney compares an amount at two decimal places
func AssertMoney(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) bool {
	t.Helper()
	return assert.Equal(t, Dec(expected).StringFixed(2), actual.StringFixed(2), msgAndArgs...)
}

// ContextWithTimeout returns a context cancelled when the test ends or timeout passes
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition until it holds, failing after timeout
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	if !WaitForCondition(t, condition, timeout, interval) {
		require.Fail(t, "Condition not met within timeout", msgAndArgs...)
	}
}

// AssertNever verifies condition stays false for duration
func AssertNever(t *testing.T, condition func() bool, duration, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if condition() {
			assert.Fail(t, "Condition unexpectedly became true", msgAndArgs...)
			return
		}
		time.Sleep(interval)
	}
}
