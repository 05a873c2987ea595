package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/ety001/steem-account-watcher/internal/models"
)

type dedupKey struct {
	account  string
	blockNum int64
	trxID    string
	opInTrx  int
}

// Memory is an in-memory Store used in tests and local development. It
// mirrors the MongoDB semantics: idempotent append, dense per-account
// sequences, singleton cursor.
type Memory struct {
	mu          sync.RWMutex
	byAccount   map[string][]models.AccountOperation
	byDedup     map[dedupKey]int64
	state       models.SyncState
	checkpoints map[string]models.CurationCheckpoint
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byAccount:   make(map[string][]models.AccountOperation),
		byDedup:     make(map[dedupKey]int64),
		checkpoints: make(map[string]models.CurationCheckpoint),
	}
}

func (s *Memory) AppendOperation(ctx context.Context, op *models.AccountOperation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey{account: op.Account, blockNum: op.BlockNum, trxID: op.TrxID, opInTrx: op.OpInTrx}
	if seq, ok := s.byDedup[key]; ok {
		return seq, nil
	}

	seq := int64(len(s.byAccount[op.Account]))
	stored := *op
	stored.Sequence = seq
	s.byAccount[op.Account] = append(s.byAccount[op.Account], stored)
	s.byDedup[key] = seq
	return seq, nil
}

func (s *Memory) CountOperations(ctx context.Context, account string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byAccount[account])), nil
}

func (s *Memory) ReadOperations(ctx context.Context, account string, start, limit int64) ([]models.AccountOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ops := s.byAccount[account]
	if start < 0 {
		start = 0
	}
	if start >= int64(len(ops)) || limit <= 0 {
		return []models.AccountOperation{}, nil
	}
	end := start + limit
	if end > int64(len(ops)) {
		end = int64(len(ops))
	}

	out := make([]models.AccountOperation, end-start)
	copy(out, ops[start:end])
	return out, nil
}

func (s *Memory) TrackedAccounts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]string, 0, len(s.byAccount))
	for account := range s.byAccount {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (s *Memory) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	return &state, nil
}

func (s *Memory) UpdateSyncState(ctx context.Context, lastBlock, lastIrreversible int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastBlock = lastBlock
	s.state.LastIrreversibleBlock = lastIrreversible
	return nil
}

func (s *Memory) GetCheckpoint(ctx context.Context, account string) (*models.CurationCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checkpoint, ok := s.checkpoints[account]
	if !ok {
		return nil, ErrNotFound
	}
	return &checkpoint, nil
}

func (s *Memory) SaveCheckpoint(ctx context.Context, checkpoint *models.CurationCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.Account] = *checkpoint
	return nil
}
