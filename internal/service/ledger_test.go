package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_NoViolations_ZeroRecord(t *testing.T) {
	ledger := NewWarningLedger(newMemWarningRepo())

	record, err := ledger.Get(context.Background(), "guild1", "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), record.Count)
	assert.Equal(t, "guild1", record.GuildID)
	assert.Equal(t, "user1", record.UserID)
}

func TestRecordViolation_CreatesLazily(t *testing.T) {
	ledger := NewWarningLedger(newMemWarningRepo())
	ctx := context.Background()

	record, err := ledger.RecordViolation(ctx, "guild1", "user1", "insult")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Count)
	assert.Equal(t, "insult", record.LastCategory)
	assert.False(t, record.LastAt.IsZero())
}

func TestRecordViolation_Increments(t *testing.T) {
	ledger := NewWarningLedger(newMemWarningRepo())
	ctx := context.Background()

	_, err := ledger.RecordViolation(ctx, "guild1", "user1", "toxic")
	require.NoError(t, err)
	record, err := ledger.RecordViolation(ctx, "guild1", "user1", "threat")
	require.NoError(t, err)

	assert.Equal(t, int64(2), record.Count)
	assert.Equal(t, "threat", record.LastCategory)
}

func TestRecordViolation_SeparateGuilds(t *testing.T) {
	ledger := NewWarningLedger(newMemWarningRepo())
	ctx := context.Background()

	_, err := ledger.RecordViolation(ctx, "guild1", "user1", "toxic")
	require.NoError(t, err)
	_, err = ledger.RecordViolation(ctx, "guild2", "user1", "toxic")
	require.NoError(t, err)

	r1, err := ledger.Get(ctx, "guild1", "user1")
	require.NoError(t, err)
	r2, err := ledger.Get(ctx, "guild2", "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r1.Count)
	assert.Equal(t, int64(1), r2.Count)
}

func TestRecordViolation_ConcurrentNoLostIncrements(t *testing.T) {
	ledger := NewWarningLedger(newMemWarningRepo())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordViolation(ctx, "guild1", "user1", "toxic")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	record, err := ledger.Get(ctx, "guild1", "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), record.Count)
}
