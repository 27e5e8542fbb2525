package core

import (
	"fmt"
	"math"
)

// rateTolerance is the bisection halt width for SolveRequiredRate.
const rateTolerance = 1e-6

type (
	// RateSolveInput asks which monthly rate reaches the goal in a fixed
	// number of months. The remaining mechanics match SimulationInput.
	RateSolveInput struct {
		InitialBalance           float64
		MonthlyContribution      float64
		Months                   int
		AnnualInflation          float64
		Goal                     float64
		AnnualContributionGrowth float64
	}

	// RateSolution is the solver outcome. MonthlyRate is a decimal;
	// FinalBalance and AdjustedGoal come from simulating that rate over
	// the full horizon.
	RateSolution struct {
		MonthlyRate  float64
		Years        int
		Months       int
		FinalBalance float64
		AdjustedGoal float64
	}
)

// SolveRequiredRate finds, by bisection on [0, 1], the monthly return rate
// at which the simulated balance reaches the inflation-adjusted goal after
// exactly in.Months months. The simulation re-runs in full for every probe;
// the final balance grows monotonically with the rate, so the bracket
// always narrows toward the crossing point. The bracket end that reaches
// the goal is returned once the width shrinks to 1e-6. Fails with
// ErrNoSolution when even a 100% monthly rate falls short.
func SolveRequiredRate(in RateSolveInput) (*RateSolution, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	reaches := func(rate float64) bool {
		balance, adjustedGoal := simulateFixed(in, rate)
		return balance >= adjustedGoal
	}

	lo, hi := 0.0, 1.0
	if !reaches(hi) {
		return nil, fmt.Errorf("%w: goal not reachable in %d months even at a 100%% monthly rate", ErrNoSolution, in.Months)
	}
	if reaches(lo) {
		hi = lo
	}
	for hi-lo > rateTolerance {
		mid := (lo + hi) / 2
		if reaches(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}

	balance, adjustedGoal := simulateFixed(in, hi)
	return &RateSolution{
		MonthlyRate:  hi,
		Years:        in.Months / 12,
		Months:       in.Months % 12,
		FinalBalance: roundCents(balance),
		AdjustedGoal: roundCents(adjustedGoal),
	}, nil
}

// simulateFixed runs the projection mechanics for an exact number of months
// and reports the final balance and inflation-adjusted goal.
func simulateFixed(in RateSolveInput, rate float64) (balance, adjustedGoal float64) {
	monthlyInflation := math.Pow(1+in.AnnualInflation, 1.0/12) - 1
	balance = in.InitialBalance
	adjustedGoal = in.Goal
	contribution := in.MonthlyContribution

	var lastReturn float64
	for m := 1; m <= in.Months; m++ {
		ret := balance * rate
		balance += ret + contribution + lastReturn
		adjustedGoal *= 1 + monthlyInflation
		lastReturn = ret
		if m%12 == 0 {
			contribution *= 1 + in.AnnualContributionGrowth
		}
	}
	return balance, adjustedGoal
}

func (in RateSolveInput) validate() error {
	if in.Months < 1 {
		return fmt.Errorf("%w: months must be at least 1", ErrInvalidInput)
	}
	if err := validateAmounts(in.InitialBalance, in.MonthlyContribution, in.Goal); err != nil {
		return err
	}
	return validateRates(in.AnnualInflation, in.AnnualContributionGrowth)
}
