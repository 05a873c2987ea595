// Package convert holds the vesting-share to Steem Power conversion and the
// chain asset string parsing it depends on. Everything here is pure.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ety001/steem-account-watcher/internal/steem"
)

// ParseAmount splits a chain asset string like "1234.567890 VESTS" into its
// numeric value and symbol.
func ParseAmount(s string) (float64, string, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("invalid asset string %q", s)
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid asset amount %q: %w", fields[0], err)
	}
	return value, fields[1], nil
}

// VestsToPower converts a vesting share amount to Steem Power using the
// network-wide totals snapshot: power = vests * (total fund / total shares).
func VestsToPower(vests float64, props *steem.DynamicGlobalProperties) (float64, error) {
	totalFund, _, err := ParseAmount(props.TotalVestingFundSteem)
	if err != nil {
		return 0, fmt.Errorf("invalid total_vesting_fund_steem: %w", err)
	}
	totalShares, _, err := ParseAmount(props.TotalVestingShares)
	if err != nil {
		return 0, fmt.Errorf("invalid total_vesting_shares: %w", err)
	}
	if totalShares == 0 {
		return 0, fmt.Errorf("total_vesting_shares is zero")
	}
	return vests * (totalFund / totalShares), nil
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
