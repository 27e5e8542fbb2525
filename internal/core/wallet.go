package core

type (
	// WalletOverview is the headline metric row of the wallet summary
	// worksheet.
	WalletOverview struct {
		Spent         float64 // total purchase cost
		Invested      float64 // capital currently allocated
		VariationPct  float64 // invested vs spent, as a percentage
		TotalGain     float64 // capital gain plus income
		PassiveIncome float64 // dividends and interest received
		Sold          float64 // total sale proceeds
		SaleProfit    float64 // realized profit on sales
	}

	// AllocationSlice is one row of the wallet split by asset class.
	// Percentages are fractions as stored in the sheet; views scale them.
	AllocationSlice struct {
		Class      string
		IdealPct   float64
		ActualPct  float64
		Amount     float64
		Suggestion string
	}

	// WalletGoal tracks progress toward the configured wallet target.
	WalletGoal struct {
		Target      float64
		Reached     float64
		ProgressPct float64
	}

	// Milestone is one rung of the dashboard wealth ladder.
	Milestone struct {
		Amount  float64
		Reached bool
	}
)

// MilestoneAmounts is the dashboard ladder, in currency units.
var MilestoneAmounts = []float64{
	25_000, 50_000, 75_000, 100_000,
	250_000, 500_000, 750_000, 1_000_000,
	2_500_000, 5_000_000, 7_500_000, 10_000_000,
}

// Milestones marks each ladder rung against the current wallet value.
func Milestones(current float64) []Milestone {
	out := make([]Milestone, len(MilestoneAmounts))
	for i, amount := range MilestoneAmounts {
		out[i] = Milestone{Amount: amount, Reached: current >= amount}
	}
	return out
}
