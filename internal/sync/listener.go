package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ety001/steem-account-watcher/internal/metrics"
	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
	"github.com/ety001/steem-account-watcher/internal/telegram"
)

// ChainSource is the subset of the Steem client the listener needs.
type ChainSource interface {
	GetBlock(ctx context.Context, blockNum int64) (*steem.Block, error)
	GetDynamicGlobalProperties(ctx context.Context) (*steem.DynamicGlobalProperties, error)
}

// Store is the persistence surface the listener writes to.
type Store interface {
	storage.OperationStore
	storage.CursorStore
}

// Outcome is the result of a single AdvanceOneBlock call.
type Outcome int

const (
	// Advanced means exactly one block was processed and the cursor moved.
	Advanced Outcome = iota
	// NoNewBlock means the chain head has not reached the next height yet.
	NoNewBlock
)

// Listener follows the irreversible chain head one block at a time and
// persists operations for tracked accounts. It is the only writer of the
// sync cursor and the only ingestion-path appender, so block processing
// needs no locking: the cursor is advanced strictly after every record of
// the block has been persisted, and the idempotent append makes re-running
// a half-persisted block safe.
type Listener struct {
	chain      ChainSource
	store      Store
	processor  *BlockProcessor
	notifier   *telegram.Client
	notifyOps  map[string]bool
	log        *slog.Logger
	poll       time.Duration
	maxBackoff time.Duration
	startBlock int64

	// last irreversible block seen; avoids one properties call per block
	// while catching up
	knownHead int64
}

// ListenerOptions configures a Listener.
type ListenerOptions struct {
	StartBlock       int64
	PollInterval     time.Duration
	MaxBackoff       time.Duration
	Notifier         *telegram.Client
	NotifyOperations []string
}

// NewListener creates a listener over the given chain source and store.
func NewListener(chain ChainSource, store Store, processor *BlockProcessor, opts ListenerOptions, log *slog.Logger) *Listener {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	notifyOps := make(map[string]bool, len(opts.NotifyOperations))
	for _, opType := range opts.NotifyOperations {
		notifyOps[opType] = true
	}

	return &Listener{
		chain:      chain,
		store:      store,
		processor:  processor,
		notifier:   opts.Notifier,
		notifyOps:  notifyOps,
		log:        log,
		poll:       opts.PollInterval,
		maxBackoff: opts.MaxBackoff,
		startBlock: opts.StartBlock,
	}
}

// nextBlock computes the height to process next from the persisted cursor,
// falling back to the configured start block on a fresh database.
func (l *Listener) nextBlock(ctx context.Context) (int64, error) {
	state, err := l.store.GetSyncState(ctx)
	if err != nil {
		return 0, err
	}
	if state.LastBlock == 0 && l.startBlock > 0 {
		return l.startBlock, nil
	}
	return state.LastBlock + 1, nil
}

// AdvanceOneBlock processes exactly one block past the cursor. It returns
// NoNewBlock when the irreversible head has not reached the next height.
// On any error the cursor is untouched and the same block is retried by the
// next call.
func (l *Listener) AdvanceOneBlock(ctx context.Context) (Outcome, error) {
	next, err := l.nextBlock(ctx)
	if err != nil {
		return NoNewBlock, fmt.Errorf("failed to read cursor: %w", err)
	}

	if next > l.knownHead {
		props, err := l.chain.GetDynamicGlobalProperties(ctx)
		if err != nil {
			metrics.FetchErrors.Inc()
			return NoNewBlock, err
		}
		l.knownHead = props.LastIrreversibleBlockNum
		metrics.ChainHeadBlock.Set(float64(l.knownHead))
		if next > l.knownHead {
			return NoNewBlock, nil
		}
	}

	block, err := l.chain.GetBlock(ctx, next)
	if err != nil {
		if errors.Is(err, steem.ErrBlockNotAvailable) {
			// The node lags its own reported head; wait.
			return NoNewBlock, nil
		}
		metrics.FetchErrors.Inc()
		return NoNewBlock, err
	}

	operations := l.processor.Extract(block, next)
	for _, op := range operations {
		if _, err := l.store.AppendOperation(ctx, op); err != nil {
			metrics.PersistErrors.Inc()
			return NoNewBlock, fmt.Errorf("failed to persist block %d: %w", next, err)
		}
	}

	// All records are durable; only now may the cursor move.
	if err := l.store.UpdateSyncState(ctx, next, l.knownHead); err != nil {
		metrics.PersistErrors.Inc()
		return NoNewBlock, fmt.Errorf("failed to advance cursor past block %d: %w", next, err)
	}

	metrics.BlocksProcessed.Inc()
	metrics.LastProcessedBlock.Set(float64(next))
	if len(operations) > 0 {
		l.log.Info("block processed", "block", next, "operations", len(operations))
		for _, op := range operations {
			metrics.OperationsStored.WithLabelValues(op.Account).Inc()
		}
		l.notify(operations)
	}

	return Advanced, nil
}

// Run drives AdvanceOneBlock until ctx is cancelled. Transient fetch and
// persist errors back off exponentially and never advance the cursor; a
// caught-up listener polls for the next head block. An in-flight block
// always finishes (or aborts) before Run returns, so shutdown can never
// leave the cursor ahead of the persisted records.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("listener starting", "poll_interval", l.poll)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = l.maxBackoff
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if err := ctx.Err(); err != nil {
			l.log.Info("listener stopped")
			return err
		}

		outcome, err := l.AdvanceOneBlock(ctx)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				l.log.Info("listener stopped")
				return ctx.Err()
			}
			wait = bo.NextBackOff()
			l.log.Warn("block processing failed, backing off", "error", err, "retry_in", wait)
		case outcome == NoNewBlock:
			bo.Reset()
			wait = l.poll
		default:
			// Advanced: keep draining without delay.
			bo.Reset()
			continue
		}

		select {
		case <-ctx.Done():
			l.log.Info("listener stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (l *Listener) notify(operations []*models.AccountOperation) {
	if l.notifier == nil {
		return
	}
	for _, op := range operations {
		if len(l.notifyOps) > 0 && !l.notifyOps[op.OpType] {
			continue
		}
		if err := l.notifier.NotifyOperation(op); err != nil {
			// Notification failures never fail ingestion.
			l.log.Warn("failed to send notification", "account", op.Account, "error", err)
		}
	}
}
