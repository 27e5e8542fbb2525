package http

import (
	"context"
	"math"
	"net/http"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/sheets"
)

type overviewView struct {
	Spent         string
	Invested      string
	Variation     string
	TotalGain     string
	PassiveIncome string
	Sold          string
	SaleProfit    string
}

func buildOverviewView(o *core.WalletOverview) overviewView {
	return overviewView{
		Spent:         formatBRL(o.Spent),
		Invested:      formatBRL(o.Invested),
		Variation:     formatPercent(o.VariationPct),
		TotalGain:     formatBRL(o.TotalGain),
		PassiveIncome: formatBRL(o.PassiveIncome),
		Sold:          formatBRL(o.Sold),
		SaleProfit:    formatBRL(o.SaleProfit),
	}
}

type allocationRowView struct {
	Class      string
	Ideal      string
	Actual     string
	Amount     string
	Suggestion string
}

func buildAllocationRows(slices []core.AllocationSlice) []allocationRowView {
	out := make([]allocationRowView, 0, len(slices))
	for _, s := range slices {
		out = append(out, allocationRowView{
			Class:      s.Class,
			Ideal:      formatPercent(s.IdealPct),
			Actual:     formatPercent(s.ActualPct),
			Amount:     formatBRL(s.Amount),
			Suggestion: s.Suggestion,
		})
	}
	return out
}

type goalView struct {
	Target   string
	Reached  string
	Progress string
	// ProgressWidth is the bar width in percent, clamped to [0, 100].
	ProgressWidth float64
}

func buildGoalView(g *core.WalletGoal) goalView {
	width := g.ProgressPct * 100
	if math.IsNaN(width) || width < 0 {
		width = 0
	}
	if width > 100 {
		width = 100
	}
	return goalView{
		Target:        formatBRL(g.Target),
		Reached:       formatBRL(g.Reached),
		Progress:      formatPercent(g.ProgressPct),
		ProgressWidth: width,
	}
}

type milestoneView struct {
	Amount  string
	Reached bool
}

func buildMilestoneViews(milestones []core.Milestone) []milestoneView {
	out := make([]milestoneView, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, milestoneView{Amount: formatBRL(m.Amount), Reached: m.Reached})
	}
	return out
}

// milestonesView feeds the ladder partial: goal progress plus the rungs.
type milestonesView struct {
	Goal       goalView
	Milestones []milestoneView
}

func (s *Server) handleOverviewPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	overview, err := s.datasets.Overview(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load wallet overview", log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}
	s.render(w, r, "overview_metrics", buildOverviewView(overview))
}

func (s *Server) handleAllocationPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	allocation, err := s.datasets.Allocation(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load wallet allocation", log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}
	s.render(w, r, "allocation_table", buildAllocationRows(allocation))
}

func (s *Server) handleMilestonesPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	goal, err := s.datasets.Goal(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load wallet goal", log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}
	view := milestonesView{
		Goal:       buildGoalView(goal),
		Milestones: buildMilestoneViews(core.Milestones(goal.Reached)),
	}
	s.render(w, r, "milestone_ladder", view)
}

// handleTransactionsTable swaps the aggregated transactions table when the
// period selector changes.
func (s *Server) handleTransactionsTable(w http.ResponseWriter, r *http.Request) {
	s.aggregatedTablePartial(w, r, sheets.DatasetTransactions, transactionsAggregation, transactionsHeaders)
}

// handleDividendsTable swaps the aggregated dividends table.
func (s *Server) handleDividendsTable(w http.ResponseWriter, r *http.Request) {
	s.aggregatedTablePartial(w, r, sheets.DatasetDividends, dividendsAggregation, dividendsHeaders)
}

func (s *Server) aggregatedTablePartial(w http.ResponseWriter, r *http.Request, dataset string, aggFor func(core.Granularity) core.AggregationSpec, headers map[string]string) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	table, _, err := s.aggregatedTable(ctx, dataset, r.URL.Query(), aggFor, headers)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to aggregate dataset",
			log.FieldDataset, dataset,
			log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}
	s.render(w, r, "data_table", table)
}

// handleDividendSummaryTable serves the consolidated dividend history as
// the sheet records it.
func (s *Server) handleDividendSummaryTable(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	ds, err := s.datasets.Load(ctx, sheets.DatasetDividendSummary)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load dividend summary", log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}
	s.structured.LogDatasetServed(ctx, sheets.DatasetDividendSummary, "", ds.Len())
	s.render(w, r, "data_table", datasetTable(ds))
}
