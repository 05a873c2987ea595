// Package delegation reads an account's outgoing and expiring vesting
// delegations and annotates them with converted Steem Power values. It is a
// pure read-through transform; nothing is persisted.
package delegation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ety001/steem-account-watcher/internal/convert"
	"github.com/ety001/steem-account-watcher/internal/steem"
)

const (
	chainTimeLayout = "2006-01-02T15:04:05"

	// expiryWindow bounds how far ahead the expiring view looks.
	expiryWindow = 8 * 24 * time.Hour

	outgoingFetchLimit = 100
	expiringFetchLimit = 1000
)

// ChainSource is the subset of the Steem client the tracker needs.
type ChainSource interface {
	GetDynamicGlobalProperties(ctx context.Context) (*steem.DynamicGlobalProperties, error)
	GetVestingDelegations(ctx context.Context, delegator, start string, limit int) ([]steem.VestingDelegation, error)
	GetExpiringVestingDelegations(ctx context.Context, delegator, after string, limit int) ([]steem.ExpiringVestingDelegation, error)
}

// Outgoing is an active outgoing delegation with display annotations.
// VestingShares is the raw integer unit amount scaled by 1e6 and rounded to
// 4 decimals; SP is the converted power value rounded to 2.
type Outgoing struct {
	Delegatee         string    `json:"delegatee"`
	MinDelegationTime time.Time `json:"min_delegation_time"`
	VestingShares     float64   `json:"vesting_shares"`
	SP                float64   `json:"sp"`
}

// Expiring is a delegation return maturing within the expiry window.
type Expiring struct {
	Expiration    time.Time `json:"expiration"`
	VestingShares float64   `json:"vesting_shares"`
	SP            float64   `json:"sp"`
}

// Report is the full delegation view for one account.
type Report struct {
	Outgoing []Outgoing `json:"outgoing"`
	Expiring []Expiring `json:"expiring"`
}

// Tracker assembles delegation reports.
type Tracker struct {
	chain ChainSource
	log   *slog.Logger
	now   func() time.Time
}

// NewTracker creates a Tracker over the given chain source.
func NewTracker(chain ChainSource, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		chain: chain,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListDelegations returns the outgoing and expiring delegations for an
// account. Entries with unparseable fields are logged and skipped.
func (t *Tracker) ListDelegations(ctx context.Context, account string) (*Report, error) {
	props, err := t.chain.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch network totals: %w", err)
	}

	now := t.now()

	rawOutgoing, err := t.chain.GetVestingDelegations(ctx, account, "", outgoingFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch delegations: %w", err)
	}

	rawExpiring, err := t.chain.GetExpiringVestingDelegations(ctx, account, now.Format(chainTimeLayout), expiringFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expiring delegations: %w", err)
	}

	report := &Report{
		Outgoing: []Outgoing{},
		Expiring: []Expiring{},
	}

	for _, d := range rawOutgoing {
		createdAt, err := time.Parse(chainTimeLayout, d.MinDelegationTime)
		if err != nil {
			t.log.Warn("skipping delegation with invalid min_delegation_time",
				"delegatee", d.Delegatee, "value", d.MinDelegationTime)
			continue
		}
		vests, sp, err := annotateAmount(d.VestingShares, props)
		if err != nil {
			t.log.Warn("skipping delegation with invalid vesting_shares",
				"delegatee", d.Delegatee, "error", err)
			continue
		}
		report.Outgoing = append(report.Outgoing, Outgoing{
			Delegatee:         d.Delegatee,
			MinDelegationTime: createdAt,
			VestingShares:     vests,
			SP:                sp,
		})
	}

	deadline := now.Add(expiryWindow)
	for _, d := range rawExpiring {
		expiration, err := time.Parse(chainTimeLayout, d.Expiration)
		if err != nil {
			t.log.Warn("skipping expiring delegation with invalid expiration", "value", d.Expiration)
			continue
		}
		if expiration.After(deadline) {
			continue
		}
		vests, sp, err := annotateAmount(d.VestingShares, props)
		if err != nil {
			t.log.Warn("skipping expiring delegation with invalid vesting_shares", "error", err)
			continue
		}
		report.Expiring = append(report.Expiring, Expiring{
			Expiration:    expiration,
			VestingShares: vests,
			SP:            sp,
		})
	}

	return report, nil
}

// annotateAmount parses a raw vesting share asset string and derives the
// display amount (raw units / 1e6, 4 decimals) and the converted SP value
// (2 decimals).
func annotateAmount(raw string, props *steem.DynamicGlobalProperties) (vests, sp float64, err error) {
	amount, _, err := convert.ParseAmount(raw)
	if err != nil {
		return 0, 0, err
	}
	power, err := convert.VestsToPower(amount, props)
	if err != nil {
		return 0, 0, err
	}
	return convert.Round(amount/1e6, 4), convert.Round(power, 2), nil
}
