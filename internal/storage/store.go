package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ety001/steem-account-watcher/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// PersistError is a storage-layer failure. The listener aborts the current
// block on one of these and retries without advancing the cursor.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("storage: %s failed: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsPersistError reports whether err is (or wraps) a PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// OperationStore is the durable per-account append-only operation log.
type OperationStore interface {
	// AppendOperation persists op, assigning the account's next sequence
	// number. It is idempotent on (block_num, trx_id, op_in_trx, account):
	// re-appending an existing operation returns the already-assigned
	// sequence without growing the log.
	AppendOperation(ctx context.Context, op *models.AccountOperation) (int64, error)

	// CountOperations returns the number of records for an account, which
	// equals the next unassigned sequence number.
	CountOperations(ctx context.Context, account string) (int64, error)

	// ReadOperations returns records with sequence in [start, start+limit),
	// clipped to the available range, in ascending sequence order.
	ReadOperations(ctx context.Context, account string, start, limit int64) ([]models.AccountOperation, error)

	// TrackedAccounts lists every account that has at least one record.
	TrackedAccounts(ctx context.Context) ([]string, error)
}

// CursorStore persists the listener cursor.
type CursorStore interface {
	GetSyncState(ctx context.Context) (*models.SyncState, error)
	UpdateSyncState(ctx context.Context, lastBlock, lastIrreversible int64) error
}

// CheckpointStore persists per-account curation reward checkpoints.
// GetCheckpoint returns ErrNotFound for an account with no checkpoint yet.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, account string) (*models.CurationCheckpoint, error)
	SaveCheckpoint(ctx context.Context, checkpoint *models.CurationCheckpoint) error
}

// Store is the full persistence surface used by the daemons.
type Store interface {
	OperationStore
	CursorStore
	CheckpointStore
}
