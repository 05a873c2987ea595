package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ety001/steem-account-watcher/internal/convert"
	"github.com/ety001/steem-account-watcher/internal/models"
	"github.com/ety001/steem-account-watcher/internal/steem"
	"github.com/ety001/steem-account-watcher/internal/storage"
)

const (
	blogFetchLimit    = 50
	commentFetchLimit = 100
)

// ContentSource provides an account's recent content listings.
type ContentSource interface {
	GetDiscussionsByBlog(ctx context.Context, account string, limit int) ([]steem.Discussion, error)
	GetDiscussionsByComments(ctx context.Context, account string, limit int) ([]steem.Discussion, error)
}

// Estimator is the external reward estimation service.
type Estimator interface {
	Estimate(ctx context.Context, links []string) ([]ItemEstimate, error)
}

// Result is one reward computation: totals across all of the account's
// content still waiting for cashout, plus the checkpoint state after the
// merge (nil when no checkpoint was written).
type Result struct {
	TotalAuthor  float64                    `json:"total_author_rewards"`
	TotalSBD     float64                    `json:"total_sbd"`
	TotalSP      float64                    `json:"total_sp"`
	TotalRshares float64                    `json:"total_rshares"`
	Items        []ItemEstimate             `json:"items"`
	Checkpoint   *models.CurationCheckpoint `json:"checkpoint,omitempty"`
}

// Calculator computes pending rewards for an account by batching its
// not-yet-finalized content into a single estimator request. Checkpoint
// writes for one account are serialized through a per-account mutex;
// ordering of checkpoint values across calls is the caller's contract and
// is deliberately not enforced here.
type Calculator struct {
	chain       ContentSource
	estimator   Estimator
	checkpoints storage.CheckpointStore
	log         *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCalculator creates a Calculator. checkpoints may be nil when checkpoint
// persistence is not wanted (the calculator then only computes totals).
func NewCalculator(chain ContentSource, estimator Estimator, checkpoints storage.CheckpointStore, log *slog.Logger) *Calculator {
	if log == nil {
		log = slog.Default()
	}
	return &Calculator{
		chain:       chain,
		estimator:   estimator,
		checkpoints: checkpoints,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		locks:       make(map[string]*sync.Mutex),
	}
}

func (c *Calculator) accountLock(account string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[account] = lock
	}
	return lock
}

// PendingRewards computes reward totals for an account without touching its
// checkpoint.
func (c *Calculator) PendingRewards(ctx context.Context, account string) (*Result, error) {
	return c.compute(ctx, account)
}

// Compute computes reward totals for an account and merges the result into
// its persisted checkpoint under checkpointVal. The checkpoint is only
// written after a fully successful computation.
func (c *Calculator) Compute(ctx context.Context, account, checkpointVal string) (*Result, error) {
	lock := c.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	result, err := c.compute(ctx, account)
	if err != nil {
		return nil, err
	}

	if c.checkpoints == nil || len(result.Items) == 0 {
		return result, nil
	}

	previous, err := c.checkpoints.GetCheckpoint(ctx, account)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	merged := MergeCheckpoint(previous, account, checkpointVal, result.TotalSP, result.TotalRshares, c.now())
	if err := c.checkpoints.SaveCheckpoint(ctx, merged); err != nil {
		return nil, err
	}
	result.Checkpoint = merged

	return result, nil
}

func (c *Calculator) compute(ctx context.Context, account string) (*Result, error) {
	posts, err := c.chain.GetDiscussionsByBlog(ctx, account, blogFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blog posts: %w", err)
	}
	comments, err := c.chain.GetDiscussionsByComments(ctx, account, commentFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}

	qualifying := c.selectPending(account, append(posts, comments...))
	if len(qualifying) == 0 {
		return &Result{Items: []ItemEstimate{}}, nil
	}

	links := make([]string, len(qualifying))
	var totalRshares float64
	for i, item := range qualifying {
		links[i] = fmt.Sprintf("@%s/%s", item.Author, item.Permlink)
		totalRshares += float64(item.NetRshares)
	}

	estimates, err := c.estimator.Estimate(ctx, links)
	if err != nil {
		return nil, err
	}

	var totalAuthor, totalSBD, totalSP float64
	for _, estimate := range estimates {
		totalAuthor += estimate.Author
		totalSBD += estimate.SBDAmount
		totalSP += estimate.SPAmount
	}

	return &Result{
		TotalAuthor:  convert.Round(totalAuthor, 2),
		TotalSBD:     convert.Round(totalSBD, 2),
		TotalSP:      convert.Round(totalSP, 2),
		TotalRshares: totalRshares,
		Items:        estimates,
	}, nil
}

// selectPending keeps the items that can still accrue rewards: cashout in
// the future, positive rshares, and authored by the requested account.
// Malformed or foreign items are dropped, never fatal.
func (c *Calculator) selectPending(account string, items []steem.Discussion) []steem.Discussion {
	now := c.now()
	var pending []steem.Discussion

	for _, item := range items {
		cashout, err := time.Parse("2006-01-02T15:04:05", item.CashoutTime)
		if err != nil {
			c.log.Warn("dropping item with malformed cashout time",
				"author", item.Author, "permlink", item.Permlink, "cashout_time", item.CashoutTime)
			continue
		}
		if !cashout.After(now) {
			continue
		}
		if item.NetRshares <= 0 {
			continue
		}
		if item.Author != account {
			c.log.Warn("dropping item from foreign author",
				"expected", account, "author", item.Author, "permlink", item.Permlink)
			continue
		}
		pending = append(pending, item)
	}

	return pending
}

// MergeCheckpoint folds a freshly computed reward batch into the previous
// checkpoint for the account. It is the single place that defines what a
// checkpoint is; previous may be nil for a first computation.
func MergeCheckpoint(previous *models.CurationCheckpoint, account, checkpointVal string, spDelta, rsharesDelta float64, now time.Time) *models.CurationCheckpoint {
	merged := &models.CurationCheckpoint{
		Account:        account,
		LastCheckpoint: checkpointVal,
		UpdatedAt:      now,
	}
	if previous != nil {
		merged.AccumulatedSP = previous.AccumulatedSP
		merged.AccumulatedRshares = previous.AccumulatedRshares
	}
	merged.AccumulatedSP += spDelta
	merged.AccumulatedRshares += rsharesDelta
	return merged
}
