package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	BaseDomainEvent
}

func TestNewOutboxEntry(t *testing.T) {
	actor := NewPrincipal(uuid.New(), uuid.New())
	evt := &testEvent{BaseDomainEvent: NewBaseDomainEvent("DocumentIssued", "Document", uuid.New(), actor)}

	entry := NewOutboxEntry(evt, []byte(`{}`))

	assert.Equal(t, actor.TenantID, entry.TenantID)
	assert.Equal(t, evt.ID, entry.EventID)
	assert.Equal(t, "DocumentIssued", entry.EventType)
	assert.Equal(t, "Document", entry.AggregateType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusFailed} {
		entry := &OutboxEntry{Status: status}
		require.NoError(t, entry.MarkProcessing())
		assert.Equal(t, OutboxStatusProcessing, entry.Status)
	}

	for _, status := range []OutboxStatus{OutboxStatusProcessing, OutboxStatusSent, OutboxStatusDead} {
		entry := &OutboxEntry{Status: status}
		assert.Error(t, entry.MarkProcessing())
	}
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	entry := &OutboxEntry{Status: OutboxStatusProcessing}
	entry.MarkSent()

	assert.Equal(t, OutboxStatusSent, entry.Status)
	assert.NotNil(t, entry.ProcessedAt)
}

func TestOutboxEntry_MarkFailed_MovesToDeadAfterMaxRetries(t *testing.T) {
	entry := &OutboxEntry{
		ID:         uuid.New(),
		Status:     OutboxStatusProcessing,
		RetryCount: 4,
		MaxRetries: 5,
	}

	entry.MarkFailed("smtp unreachable")

	assert.Equal(t, OutboxStatusDead, entry.Status)
	assert.Equal(t, 5, entry.RetryCount)
	assert.Equal(t, "smtp unreachable", entry.LastError)
	assert.Nil(t, entry.NextRetryAt)
	assert.True(t, entry.IsDead())
	assert.False(t, entry.CanRetry())
}

func TestOutboxEntry_MarkFailed_ExponentialBackoff(t *testing.T) {
	entry := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 5}

	entry.MarkFailed("error 1")
	assert.Equal(t, OutboxStatusFailed, entry.Status)
	assert.True(t, entry.CanRetry())
	require.NotNil(t, entry.NextRetryAt)
	assert.Equal(t, time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))

	entry.Status = OutboxStatusProcessing
	entry.MarkFailed("error 2")
	assert.Equal(t, 2*time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))

	entry.Status = OutboxStatusProcessing
	entry.MarkFailed("error 3")
	assert.Equal(t, 4*time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))
}
