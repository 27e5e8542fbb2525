package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxProjectionMonths caps the simulation horizon at 100 years. Inputs that
// cannot reach their goal inside the cap fail with ErrGoalUnreachable
// instead of iterating forever.
const MaxProjectionMonths = 1200

type (
	// SimulationInput parameterizes a goal projection. Rates are decimals
	// in [0, 1] (0.0077 is 0.77% per month); amounts are currency units.
	SimulationInput struct {
		InitialBalance           float64
		MonthlyContribution      float64
		MonthlyRate              float64
		AnnualInflation          float64
		Goal                     float64
		AnnualContributionGrowth float64
		Start                    YearMonth
	}

	// TrajectoryPoint is one simulated month. Contribution includes the
	// previous month's reinvested return; Return is the interest earned in
	// the month. Values are rounded to cents for display, the simulation
	// itself runs at full precision.
	TrajectoryPoint struct {
		Period       YearMonth
		Contribution float64
		Balance      float64
		Return       float64
		RatePercent  float64
	}

	// Projection is the outcome of a goal simulation.
	Projection struct {
		Years        int
		Months       int
		TotalMonths  int
		ReachedAt    YearMonth
		AdjustedGoal float64
		Trajectory   []TrajectoryPoint
	}
)

// Project simulates month by month until the balance reaches the
// inflation-adjusted goal. Each month the previous month's return is folded
// into the contribution, interest accrues on the running balance, and the
// goal inflates; the contribution base grows once every twelve months. An
// initial balance at or above the goal yields a zero-month projection.
func Project(in SimulationInput) (*Projection, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	monthlyInflation := math.Pow(1+in.AnnualInflation, 1.0/12) - 1

	var (
		balance      = in.InitialBalance
		contribution = in.MonthlyContribution
		adjustedGoal = in.Goal
		lastReturn   float64
		period       = in.Start
		months       int
		trajectory   []TrajectoryPoint
	)

	for balance < adjustedGoal {
		if months >= MaxProjectionMonths {
			return nil, fmt.Errorf("%w: not reached within %d months", ErrGoalUnreachable, MaxProjectionMonths)
		}

		invested := contribution + lastReturn
		ret := balance * in.MonthlyRate
		balance += ret + invested
		adjustedGoal *= 1 + monthlyInflation

		trajectory = append(trajectory, TrajectoryPoint{
			Period:       period,
			Contribution: roundCents(invested),
			Balance:      roundCents(balance),
			Return:       roundCents(ret),
			RatePercent:  roundCents(in.MonthlyRate * 100),
		})

		lastReturn = ret
		months++
		period = period.AddMonths(1)
		if months%12 == 0 {
			contribution *= 1 + in.AnnualContributionGrowth
		}
	}

	return &Projection{
		Years:        months / 12,
		Months:       months % 12,
		TotalMonths:  months,
		ReachedAt:    in.Start.AddMonths(months),
		AdjustedGoal: adjustedGoal,
		Trajectory:   trajectory,
	}, nil
}

// TrajectoryRecords converts the trajectory into records ready for
// re-aggregation, with the column names the pages show: Mês, Aporte,
// Patrimônio (R$), Proventos (R$), Retorno Mensal (%).
func (p *Projection) TrajectoryRecords() []Record {
	records := make([]Record, len(p.Trajectory))
	for i, tp := range p.Trajectory {
		records[i] = Record{
			"Mês":                tp.Period.Date(),
			"Aporte":             tp.Contribution,
			"Patrimônio (R$)":    tp.Balance,
			"Proventos (R$)":     tp.Return,
			"Retorno Mensal (%)": tp.RatePercent,
		}
	}
	return records
}

func (in SimulationInput) validate() error {
	if err := validateAmounts(in.InitialBalance, in.MonthlyContribution, in.Goal); err != nil {
		return err
	}
	if err := validateRates(in.MonthlyRate, in.AnnualInflation, in.AnnualContributionGrowth); err != nil {
		return err
	}
	if in.Start.IsZero() {
		return fmt.Errorf("%w: start period is required", ErrInvalidInput)
	}
	return nil
}

func validateAmounts(balance, contribution, goal float64) error {
	for _, v := range []float64{balance, contribution, goal} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: amounts must be finite", ErrInvalidInput)
		}
	}
	if goal <= 0 {
		return fmt.Errorf("%w: goal must be positive", ErrInvalidInput)
	}
	if balance < 0 || contribution < 0 {
		return fmt.Errorf("%w: balance and contribution must not be negative", ErrInvalidInput)
	}
	return nil
}

func validateRates(rates ...float64) error {
	for _, r := range rates {
		if math.IsNaN(r) || r < 0 || r > 1 {
			return fmt.Errorf("%w: rates must be decimals between 0 and 1", ErrInvalidInput)
		}
	}
	return nil
}

// roundCents rounds a monetary amount to two decimals, ties to even.
// Non-finite values pass through untouched.
func roundCents(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return f
}
