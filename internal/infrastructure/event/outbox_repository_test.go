package event

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

func newEntry(t *testing.T, tenantID uuid.UUID) *shared.OutboxEntry {
	t.Helper()
	event := issuedEvent(tenantID)
	payload, err := billingSerializer().Serialize(event)
	require.NoError(t, err)
	return shared.NewOutboxEntry(event, payload)
}

func TestGormOutboxRepository_SaveAndFindPending(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	first := newEntry(t, tenantID)
	second := newEntry(t, tenantID)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Save(ctx, second, first))
	require.NoError(t, repo.Save(ctx))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, tenantID, pending[0].TenantID)
	assert.JSONEq(t, string(first.Payload), string(pending[0].Payload))

	limited, err := repo.FindPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormOutboxRepository_ClaimAndUpdate(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	entry := newEntry(t, uuid.New())
	require.NoError(t, repo.Save(ctx, entry))

	claimed, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)

	again, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	assert.Empty(t, again, "an entry in flight cannot be claimed twice")

	claimed[0].MarkFailed("smtp down")
	require.NoError(t, repo.Update(ctx, claimed[0]))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "smtp down", stored.LastError)
	require.NotNil(t, stored.NextRetryAt)

	notYet, err := repo.FindRetryable(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, notYet)

	due, err := repo.FindRetryable(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestGormOutboxRepository_UpdateMissing(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	err := repo.Update(context.Background(), newEntry(t, uuid.New()))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOutboxRepository_DeadLetters(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	dead := newEntry(t, tenantID)
	dead.MaxRetries = 1
	dead.MarkFailed("unknown event type")
	require.True(t, dead.IsDead())
	otherTenant := newEntry(t, uuid.New())
	otherTenant.MaxRetries = 1
	otherTenant.MarkFailed("boom")
	require.NoError(t, repo.Save(ctx, dead, otherTenant, newEntry(t, tenantID)))

	entries, total, err := repo.FindDead(ctx, tenantID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, dead.ID, entries[0].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[shared.OutboxStatusDead])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])

	assert.ErrorIs(t, repo.Requeue(ctx, tenantID, otherTenant.ID), shared.ErrNotFound)
	require.NoError(t, repo.Requeue(ctx, tenantID, dead.ID))

	requeued, err := repo.FindByID(ctx, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusPending, requeued.Status)
	assert.Zero(t, requeued.RetryCount)
}

func TestGormOutboxRepository_DeleteOlderThan(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	sent := newEntry(t, uuid.New())
	sent.MarkSent()
	old := time.Now().Add(-48 * time.Hour)
	sent.ProcessedAt = &old
	pending := newEntry(t, uuid.New())
	require.NoError(t, repo.Save(ctx, sent, pending))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByID(ctx, sent.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindByID(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestGormOutboxRepository_MarkProcessingSkipsLockedRows(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE .*id IN .*status IN .*FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	mock.ExpectCommit()

	claimed, err := NewGormOutboxRepository(db).MarkProcessing(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	assert.Empty(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
