package core

import (
	"errors"
	"testing"
)

func TestSolveRequiredRateInverseOfProject(t *testing.T) {
	in := RateSolveInput{
		InitialBalance:           1000,
		MonthlyContribution:      200,
		Months:                   36,
		AnnualInflation:          0.04,
		Goal:                     20000,
		AnnualContributionGrowth: 0.05,
	}
	sol, err := SolveRequiredRate(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.MonthlyRate <= 0 || sol.MonthlyRate >= 1 {
		t.Fatalf("implausible rate %v", sol.MonthlyRate)
	}
	if sol.FinalBalance < sol.AdjustedGoal-0.01 {
		t.Fatalf("final balance %v below adjusted goal %v", sol.FinalBalance, sol.AdjustedGoal)
	}

	// Projecting at the solved rate reaches the goal in the requested
	// horizon, within a month of bisection tolerance.
	p, err := Project(SimulationInput{
		InitialBalance:           in.InitialBalance,
		MonthlyContribution:      in.MonthlyContribution,
		MonthlyRate:              sol.MonthlyRate,
		AnnualInflation:          in.AnnualInflation,
		Goal:                     in.Goal,
		AnnualContributionGrowth: in.AnnualContributionGrowth,
		Start:                    YearMonth{Year: 2024, Month: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalMonths > in.Months || p.TotalMonths < in.Months-1 {
		t.Fatalf("projection took %d months, want about %d", p.TotalMonths, in.Months)
	}
}

func TestSolveRequiredRateMonotoneInGoal(t *testing.T) {
	base := RateSolveInput{
		InitialBalance:      1000,
		MonthlyContribution: 100,
		Months:              24,
		Goal:                5000,
	}
	low, err := SolveRequiredRate(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	base.Goal = 15000
	high, err := SolveRequiredRate(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if high.MonthlyRate <= low.MonthlyRate {
		t.Fatalf("rate %v for higher goal not above %v", high.MonthlyRate, low.MonthlyRate)
	}
}

func TestSolveRequiredRateZeroWhenAlreadyFunded(t *testing.T) {
	sol, err := SolveRequiredRate(RateSolveInput{
		InitialBalance:      5000,
		MonthlyContribution: 0,
		Months:              12,
		Goal:                1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.MonthlyRate != 0 {
		t.Fatalf("got rate %v, want 0", sol.MonthlyRate)
	}
}

func TestSolveRequiredRateNoSolution(t *testing.T) {
	_, err := SolveRequiredRate(RateSolveInput{
		MonthlyContribution: 1,
		Months:              12,
		Goal:                1e9,
	})
	if !errors.Is(err, ErrNoSolution) {
		t.Fatalf("expected ErrNoSolution, got %v", err)
	}
}

func TestSolveRequiredRateDecomposition(t *testing.T) {
	sol, err := SolveRequiredRate(RateSolveInput{
		InitialBalance:      1000,
		MonthlyContribution: 100,
		Months:              30,
		Goal:                10000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Years != 2 || sol.Months != 6 {
		t.Fatalf("got %dy%dm, want 2y6m", sol.Years, sol.Months)
	}
}

func TestSolveRequiredRateValidation(t *testing.T) {
	cases := []RateSolveInput{
		{Months: 0, Goal: 100},
		{Months: -3, Goal: 100},
		{Months: 12, Goal: 0},
		{Months: 12, Goal: 100, InitialBalance: -1},
		{Months: 12, Goal: 100, AnnualInflation: 3},
	}
	for i, in := range cases {
		if _, err := SolveRequiredRate(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestSolveRequiredRateBracketConverges(t *testing.T) {
	in := RateSolveInput{
		InitialBalance:      100,
		MonthlyContribution: 50,
		Months:              12,
		Goal:                5000,
	}
	sol, err := SolveRequiredRate(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Just below the solved rate the goal is missed, so the bracket really
	// did converge onto the crossing point.
	balance, goal := simulateFixed(in, sol.MonthlyRate)
	if balance < goal {
		t.Fatalf("solved rate misses: balance %v < goal %v", balance, goal)
	}
	balance, goal = simulateFixed(in, sol.MonthlyRate-2*rateTolerance)
	if balance >= goal {
		t.Fatalf("rate below bracket still reaches: %v >= %v", balance, goal)
	}
}
