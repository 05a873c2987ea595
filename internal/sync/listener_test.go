package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	head     int64
	blocks   map[int64]*steem.Block
	fetchErr error
}

func (f *fakeChain) GetBlock(ctx context.Context, blockNum int64) (*steem.Block, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	block, ok := f.blocks[blockNum]
	if !ok {
		return nil, steem.ErrBlockNotAvailable
	}
	return block, nil
}

func (f *fakeChain) GetDynamicGlobalProperties(ctx context.Context) (*steem.DynamicGlobalProperties, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &steem.DynamicGlobalProperties{LastIrreversibleBlockNum: f.head}, nil
}

// flakyStore fails appends once a trigger count is reached, to simulate a
// storage outage in the middle of a block.
type flakyStore struct {
	*storage.Memory
	failAfter int // fail the append once this many have succeeded (-1 disables)
	appends   int
}

func (s *flakyStore) AppendOperation(ctx context.Context, op *models.AccountOperation) (int64, error) {
	if s.failAfter >= 0 && s.appends >= s.failAfter {
		return 0, &storage.PersistError{Op: "insert operation", Err: errors.New("storage down")}
	}
	s.appends++
	return s.Memory.AppendOperation(ctx, op)
}

func voteBlock(voters ...string) *steem.Block {
	ops := make([]interface{}, len(voters))
	for i, voter := range voters {
		ops[i] = []interface{}{"vote", map[string]interface{}{"voter": voter}}
	}
	return &steem.Block{
		Timestamp:    "2023-05-01T12:00:00",
		Transactions: []steem.Transaction{{TransactionID: "trx", Operations: ops}},
	}
}

func newTestListener(chain *fakeChain, store Store) *Listener {
	processor := NewBlockProcessor([]string{"alice"}, false)
	return NewListener(chain, store, processor, ListenerOptions{}, nil)
}

func TestAdvanceOneBlockPersistsAndAdvances(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	chain := &fakeChain{head: 1, blocks: map[int64]*steem.Block{1: voteBlock("alice")}}

	listener := newTestListener(chain, store)

	outcome, err := listener.AdvanceOneBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, Advanced, outcome)

	count, _ := store.CountOperations(ctx, "alice")
	assert.Equal(t, int64(1), count)

	state, _ := store.GetSyncState(ctx)
	assert.Equal(t, int64(1), state.LastBlock)
}

func TestAdvanceOneBlockWaitsAtHead(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	chain := &fakeChain{head: 0, blocks: map[int64]*steem.Block{}}

	listener := newTestListener(chain, store)

	outcome, err := listener.AdvanceOneBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoNewBlock, outcome)

	state, _ := store.GetSyncState(ctx)
	assert.Equal(t, int64(0), state.LastBlock)
}

func TestAdvanceOneBlockFetchErrorLeavesCursor(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	chain := &fakeChain{fetchErr: &steem.FetchError{Method: "get_block", Err: errors.New("node down")}}

	listener := newTestListener(chain, store)

	_, err := listener.AdvanceOneBlock(ctx)
	require.Error(t, err)
	assert.True(t, steem.IsFetchError(err))

	state, _ := store.GetSyncState(ctx)
	assert.Equal(t, int64(0), state.LastBlock)
}

func TestPartialPersistFailureIsRetriedCleanly(t *testing.T) {
	ctx := context.Background()
	memory := storage.NewMemory()
	store := &flakyStore{Memory: memory, failAfter: 2}
	chain := &fakeChain{head: 1, blocks: map[int64]*steem.Block{
		1: voteBlock("alice", "alice-2", "alice"), // only "alice" ops are tracked
	}}
	chain.blocks[1].Transactions[0].Operations = []interface{}{
		[]interface{}{"vote", map[string]interface{}{"voter": "alice"}},
		[]interface{}{"comment", map[string]interface{}{"author": "alice"}},
		[]interface{}{"transfer", map[string]interface{}{"from": "alice", "to": "nobody"}},
	}

	listener := newTestListener(chain, store)

	// Two appends succeed, the third hits the outage. The cursor must not move.
	_, err := listener.AdvanceOneBlock(ctx)
	require.Error(t, err)
	assert.True(t, storage.IsPersistError(err))

	state, _ := memory.GetSyncState(ctx)
	assert.Equal(t, int64(0), state.LastBlock)

	// Storage recovers; the same block is reprocessed with no duplicates.
	store.failAfter = -1
	outcome, err := listener.AdvanceOneBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, Advanced, outcome)

	count, _ := memory.CountOperations(ctx, "alice")
	assert.Equal(t, int64(3), count)

	ops, _ := memory.ReadOperations(ctx, "alice", 0, count)
	for i, op := range ops {
		assert.Equal(t, int64(i), op.Sequence, "sequences must stay dense after a retry")
	}

	state, _ = memory.GetSyncState(ctx)
	assert.Equal(t, int64(1), state.LastBlock)
}

func TestListenerDrainsToHead(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	chain := &fakeChain{head: 3, blocks: map[int64]*steem.Block{
		1: voteBlock("alice"),
		2: voteBlock("bob"),
		3: voteBlock("alice"),
	}}

	listener := newTestListener(chain, store)

	for i := 0; i < 3; i++ {
		outcome, err := listener.AdvanceOneBlock(ctx)
		require.NoError(t, err)
		require.Equal(t, Advanced, outcome, fmt.Sprintf("advance %d", i))
	}

	outcome, err := listener.AdvanceOneBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoNewBlock, outcome)

	count, _ := store.CountOperations(ctx, "alice")
	assert.Equal(t, int64(2), count)

	state, _ := store.GetSyncState(ctx)
	assert.Equal(t, int64(3), state.LastBlock)
}

func TestListenerStartBlockOnFreshDatabase(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	chain := &fakeChain{head: 101, blocks: map[int64]*steem.Block{
		100: voteBlock("alice"),
		101: voteBlock("alice"),
	}}

	processor := NewBlockProcessor([]string{"alice"}, false)
	listener := NewListener(chain, store, processor, ListenerOptions{StartBlock: 100}, nil)

	outcome, err := listener.AdvanceOneBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, Advanced, outcome)

	state, _ := store.GetSyncState(ctx)
	assert.Equal(t, int64(100), state.LastBlock)
}
