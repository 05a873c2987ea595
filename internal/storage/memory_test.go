package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(account string, block int64, trx string, opInTrx int) *models.AccountOperation {
	return &models.AccountOperation{
		Account:   account,
		BlockNum:  block,
		TrxID:     trx,
		OpInTrx:   opInTrx,
		OpType:    "transfer",
		OpData:    map[string]interface{}{"from": account},
		Timestamp: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAppendAssignsDenseSequences(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	for i := 0; i < 5; i++ {
		seq, err := store.AppendOperation(ctx, op("alice", int64(100+i), "trx", 0))
		require.NoError(t, err)
		assert.Equal(t, int64(i), seq)
	}

	count, err := store.CountOperations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	ops, err := store.ReadOperations(ctx, "alice", 0, count)
	require.NoError(t, err)
	require.Len(t, ops, 5)
	for i, o := range ops {
		assert.Equal(t, int64(i), o.Sequence)
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	first, err := store.AppendOperation(ctx, op("alice", 100, "abc", 0))
	require.NoError(t, err)

	again, err := store.AppendOperation(ctx, op("alice", 100, "abc", 0))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	count, err := store.CountOperations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSequencesAreScopedPerAccount(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	seqAlice, err := store.AppendOperation(ctx, op("alice", 100, "abc", 0))
	require.NoError(t, err)
	seqBob, err := store.AppendOperation(ctx, op("bob", 100, "abc", 1))
	require.NoError(t, err)

	assert.Equal(t, int64(0), seqAlice)
	assert.Equal(t, int64(0), seqBob)
}

func TestReadOperationsClipsRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	for i := 0; i < 30; i++ {
		_, err := store.AppendOperation(ctx, op("alice", int64(i), "trx", 0))
		require.NoError(t, err)
	}

	ops, err := store.ReadOperations(ctx, "alice", 25, 25)
	require.NoError(t, err)
	require.Len(t, ops, 5)
	assert.Equal(t, int64(25), ops[0].Sequence)
	assert.Equal(t, int64(29), ops[4].Sequence)

	ops, err = store.ReadOperations(ctx, "alice", 25000, 25)
	require.NoError(t, err)
	assert.Empty(t, ops)

	ops, err = store.ReadOperations(ctx, "alice", -5, 3)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, int64(0), ops[0].Sequence)
}

func TestTrackedAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.AppendOperation(ctx, op("carol", 1, "a", 0))
	require.NoError(t, err)
	_, err = store.AppendOperation(ctx, op("alice", 2, "b", 0))
	require.NoError(t, err)

	accounts, err := store.TrackedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, accounts)
}

func TestSyncStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	state, err := store.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.LastBlock)

	require.NoError(t, store.UpdateSyncState(ctx, 1234, 1240))

	state, err = store.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), state.LastBlock)
	assert.Equal(t, int64(1240), state.LastIrreversibleBlock)
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.GetCheckpoint(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveCheckpoint(ctx, &models.CurationCheckpoint{
		Account:        "alice",
		LastCheckpoint: "cp-1",
		AccumulatedSP:  3.5,
	}))

	checkpoint, err := store.GetCheckpoint(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "cp-1", checkpoint.LastCheckpoint)
	assert.Equal(t, 3.5, checkpoint.AccumulatedSP)
}
