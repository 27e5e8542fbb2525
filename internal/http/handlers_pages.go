package http

import (
	"context"
	"net/http"
	"net/url"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/sheets"
)

// positionPage describes one holdings page. The three worksheets share a
// template and a chart endpoint; Slug keys the chart query.
type positionPage struct {
	Path        string
	Slug        string
	Dataset     string
	Title       string
	SectorField string
}

var positionPages = []positionPage{
	{Path: "/acoes", Slug: "acoes", Dataset: sheets.DatasetStocks, Title: "Ações", SectorField: "Setor"},
	{Path: "/fundos-imobiliarios", Slug: "fundos-imobiliarios", Dataset: sheets.DatasetREITs, Title: "Fundos Imobiliários", SectorField: "Segmento"},
	{Path: "/small-caps", Slug: "small-caps", Dataset: sheets.DatasetSmallCaps, Title: "Small Caps", SectorField: "Setor"},
}

// Aggregated value columns read better under the sheet's own header.
var (
	transactionsHeaders = map[string]string{
		core.ValueColumn(core.Sum, "Preço Total (R$)"): "Total (R$)",
	}
	dividendsHeaders = map[string]string{
		core.ValueColumn(core.Sum, "Valor Líquido (R$)"): "Total (R$)",
	}
)

func transactionsAggregation(g core.Granularity) core.AggregationSpec {
	return core.AggregationSpec{
		BucketField:    "Data Negócio",
		Granularity:    g,
		ValueFields:    []string{"Preço Total (R$)"},
		Reducers:       []core.Reducer{core.Sum},
		CategoryFields: []string{"Compra/Venda", "Tipo Ativo"},
	}
}

func dividendsAggregation(g core.Granularity) core.AggregationSpec {
	return core.AggregationSpec{
		BucketField:    "Data",
		Granularity:    g,
		ValueFields:    []string{"Valor Líquido (R$)"},
		Reducers:       []core.Reducer{core.Sum},
		CategoryFields: []string{"Tipo Ativo"},
	}
}

// aggregatedTable loads a dataset, resolves the requested granularity
// against the offered menu and renders one aggregation pass.
func (s *Server) aggregatedTable(ctx context.Context, dataset string, query url.Values, aggFor func(core.Granularity) core.AggregationSpec, headers map[string]string) (tableView, []granularityOption, error) {
	offered, err := s.datasets.GranularityOptions(ctx, dataset)
	if err != nil {
		return tableView{}, nil, err
	}
	g, err := parseGranularityParam(query, offered)
	if err != nil {
		return tableView{}, nil, err
	}
	agg, err := s.datasets.AggregateDataset(ctx, dataset, aggFor(g))
	if err != nil {
		return tableView{}, nil, err
	}
	s.structured.LogDatasetServed(ctx, dataset, string(g), len(agg.Rows))
	return resultTable(agg, headers), granularityOptions(offered, g), nil
}

type dashboardView struct {
	Page       string
	Title      string
	Overview   overviewView
	Allocation []allocationRowView
	Ladder     milestonesView
}

// handleDashboard renders the wallet summary page. Sections that fail to
// load render empty rather than taking the whole page down.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Página não encontrada").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	view := dashboardView{Page: "/", Title: "Visão Geral"}

	if overview, err := s.datasets.Overview(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load wallet overview", log.FieldError, err.Error())
	} else {
		view.Overview = buildOverviewView(overview)
	}

	if allocation, err := s.datasets.Allocation(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load wallet allocation", log.FieldError, err.Error())
	} else {
		view.Allocation = buildAllocationRows(allocation)
	}

	if goal, err := s.datasets.Goal(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load wallet goal", log.FieldError, err.Error())
	} else {
		view.Ladder = milestonesView{
			Goal:       buildGoalView(goal),
			Milestones: buildMilestoneViews(core.Milestones(goal.Reached)),
		}
	}

	s.render(w, r, "dashboard_page", view)
}

type transactionsPageView struct {
	Page          string
	Title         string
	Granularities []granularityOption
	Aggregated    tableView
	Raw           tableView
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	view := transactionsPageView{Page: "/lancamentos", Title: "Lançamentos"}

	aggregated, options, err := s.aggregatedTable(ctx, sheets.DatasetTransactions, r.URL.Query(), transactionsAggregation, transactionsHeaders)
	if err != nil {
		if statusForError(err) == http.StatusUnprocessableEntity {
			CoreErrorResponse(err).Write(w)
			return
		}
		s.logger.ErrorContext(ctx, "Failed to aggregate transactions", log.FieldError, err.Error())
	} else {
		view.Aggregated = aggregated
		view.Granularities = options
	}

	if ds, err := s.datasets.Load(ctx, sheets.DatasetTransactions); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load transactions", log.FieldError, err.Error())
	} else {
		view.Raw = datasetTable(ds)
	}

	s.render(w, r, "transactions_page", view)
}

// dividendsPageView leaves the consolidated table out; the page lazy-loads
// it through the partial endpoint.
type dividendsPageView struct {
	Page          string
	Title         string
	Granularities []granularityOption
	Aggregated    tableView
	History       tableView
}

func (s *Server) handleDividendsPage(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	view := dividendsPageView{Page: "/proventos", Title: "Proventos"}

	aggregated, options, err := s.aggregatedTable(ctx, sheets.DatasetDividends, r.URL.Query(), dividendsAggregation, dividendsHeaders)
	if err != nil {
		if statusForError(err) == http.StatusUnprocessableEntity {
			CoreErrorResponse(err).Write(w)
			return
		}
		s.logger.ErrorContext(ctx, "Failed to aggregate dividends", log.FieldError, err.Error())
	} else {
		view.Aggregated = aggregated
		view.Granularities = options
	}

	if ds, err := s.datasets.Load(ctx, sheets.DatasetDividends); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load dividends", log.FieldError, err.Error())
	} else {
		view.History = datasetTable(ds)
	}

	s.render(w, r, "dividends_page", view)
}

type positionsPageView struct {
	Page        string
	Title       string
	Slug        string
	SectorField string
	Table       tableView
}

// positionsHandler serves one holdings page; the template is shared by the
// three position worksheets.
func (s *Server) positionsHandler(page positionPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := RequireGET(r); resp != nil {
			resp.Write(w)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()

		view := positionsPageView{
			Page:        page.Path,
			Title:       page.Title,
			Slug:        page.Slug,
			SectorField: page.SectorField,
		}

		if ds, err := s.datasets.Load(ctx, page.Dataset); err != nil {
			s.logger.ErrorContext(ctx, "Failed to load positions",
				log.FieldDataset, page.Dataset,
				log.FieldError, err.Error())
		} else {
			view.Table = datasetTable(ds)
			s.structured.LogDatasetServed(ctx, page.Dataset, "", ds.Len())
		}

		s.render(w, r, "positions_page", view)
	}
}
