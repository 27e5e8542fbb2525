// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for snapshot staleness checking.
// Each refresh policy (plain age, market hours) has its own checker that
// encapsulates the logic for deciding when a dataset snapshot is due.

package services

import (
	"fmt"
	"time"

	"carteira/internal/sheets"
)

// RefreshPolicy names a staleness checking strategy for a dataset.
type RefreshPolicy string

const (
	// PolicyAge refreshes a snapshot whenever it is older than the dataset's
	// max age, at any hour.
	PolicyAge RefreshPolicy = "age"

	// PolicyMarketHours refreshes at the dataset's max age during B3 trading
	// hours and stretches the allowance outside them.
	PolicyMarketHours RefreshPolicy = "market_hours"
)

// StalenessChecker is the strategy interface for checking if a dataset
// snapshot is due for a refresh. Each implementation encapsulates the
// algorithm for a specific refresh policy.
type StalenessChecker interface {
	// IsDue returns true if the snapshot should be refreshed based on the
	// last fetch time, the current time and the dataset's max age.
	IsDue(lastFetch, now time.Time, maxAge time.Duration) bool
}

// AgeChecker implements StalenessChecker on snapshot age alone.
type AgeChecker struct{}

// IsDue returns true if the snapshot is missing or at least maxAge old.
func (AgeChecker) IsDue(lastFetch, now time.Time, maxAge time.Duration) bool {
	if lastFetch.IsZero() {
		return true
	}
	return now.Sub(lastFetch) >= maxAge
}

// offHoursFactor stretches the age allowance outside the trading window.
const offHoursFactor = 6

// b3Location is the São Paulo zone B3 trades in. Brazil dropped DST in
// 2019, so the fixed offset fallback matches when tzdata is unavailable.
var b3Location = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}()

// MarketHoursChecker implements StalenessChecker for quote driven datasets.
// Quotes only move while B3 trades, so off-hours snapshots stay acceptable
// for longer.
type MarketHoursChecker struct{}

// IsDue returns true if the snapshot is at least maxAge old during the B3
// trading window, or offHoursFactor times maxAge old outside it.
func (MarketHoursChecker) IsDue(lastFetch, now time.Time, maxAge time.Duration) bool {
	if lastFetch.IsZero() {
		return true
	}
	allowed := maxAge
	if !duringTradingHours(now) {
		allowed = maxAge * offHoursFactor
	}
	return now.Sub(lastFetch) >= allowed
}

// duringTradingHours reports whether t falls inside the B3 session,
// weekdays 10:00 to 18:00 São Paulo time.
func duringTradingHours(t time.Time) bool {
	local := t.In(b3Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= 10 && hour < 18
}

// stalenessStrategies maps refresh policies to their corresponding checkers.
// This registry enables O(1) lookup and easy extension for new policies.
var stalenessStrategies = map[RefreshPolicy]StalenessChecker{
	PolicyAge:         AgeChecker{},
	PolicyMarketHours: MarketHoursChecker{},
}

// GetStalenessChecker returns the appropriate checker for a refresh policy.
// Returns an error if the policy is not registered.
func GetStalenessChecker(policy RefreshPolicy) (StalenessChecker, error) {
	checker, ok := stalenessStrategies[policy]
	if !ok {
		return nil, fmt.Errorf("unknown refresh policy: %s", policy)
	}
	return checker, nil
}

// RegisterStalenessChecker allows registering custom checkers for new
// refresh policies without touching the registry.
func RegisterStalenessChecker(policy RefreshPolicy, checker StalenessChecker) {
	stalenessStrategies[policy] = checker
}

// PolicyFor returns the refresh policy of a dataset. Position and summary
// datasets recompute from live quotes and follow market hours; ledger
// datasets only change when a row is typed in and age uniformly.
func PolicyFor(dataset string) RefreshPolicy {
	switch dataset {
	case sheets.DatasetStocks, sheets.DatasetREITs, sheets.DatasetSmallCaps,
		sheets.DatasetResults, sheets.DatasetOverview, sheets.DatasetAllocation,
		sheets.DatasetGoal:
		return PolicyMarketHours
	}
	return PolicyAge
}
