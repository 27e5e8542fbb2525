package http

import (
	"bytes"
	"encoding/json"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/log"
)

// trajectoryColumns is the display order of the simulated trajectory.
var trajectoryColumns = []string{
	"Mês", "Aporte", "Patrimônio (R$)", "Proventos (R$)", "Retorno Mensal (%)",
}

func trajectoryAggregation(g core.Granularity) core.AggregationSpec {
	return core.AggregationSpec{
		BucketField: "Mês",
		Granularity: g,
		ValueFields: []string{"Aporte", "Patrimônio (R$)", "Proventos (R$)", "Retorno Mensal (%)"},
		Reducers:    []core.Reducer{core.Max},
	}
}

// formatRate renders a decimal rate (0.0077) as a percentage with enough
// precision for solver output: 0,77%.
func formatRate(fraction float64) string {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return "—"
	}
	v := decimal.NewFromFloat(fraction * 100).Round(4)
	return strings.Replace(v.String(), ".", ",", 1) + "%"
}

// formatTrajectoryCell formats one trajectory value. Unlike the sheet's
// fraction columns, Retorno Mensal (%) already carries a display
// percentage, so it only gets the decimal comma.
func formatTrajectoryCell(column string, value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "—"
	}
	if strings.Contains(column, "%") {
		return strings.Replace(decimal.NewFromFloat(value).Round(2).StringFixed(2), ".", ",", 1) + "%"
	}
	return formatBRL(value)
}

// trajectoryTable renders the raw monthly trajectory.
func trajectoryTable(points []core.TrajectoryPoint) tableView {
	view := tableView{Headers: trajectoryColumns}
	for _, tp := range points {
		view.Rows = append(view.Rows, []string{
			tp.Period.String(),
			formatBRL(tp.Contribution),
			formatBRL(tp.Balance),
			formatBRL(tp.Return),
			formatTrajectoryCell("Retorno Mensal (%)", tp.RatePercent),
		})
	}
	return view
}

// aggregatedTrajectoryTable renders a re-aggregated trajectory under the
// original column names.
func aggregatedTrajectoryTable(t *core.ResultTable) tableView {
	prefix := string(core.Max) + " - "
	cols := []string{"Período"}
	for _, vc := range t.ValueColumns {
		cols = append(cols, strings.TrimPrefix(vc, prefix))
	}

	view := tableView{Headers: cols}
	for _, row := range t.Rows {
		cells := make([]string, 0, len(cols))
		cells = append(cells, row.Bucket)
		for i, vc := range t.ValueColumns {
			cells = append(cells, formatTrajectoryCell(cols[1+i], row.Value(vc)))
		}
		view.Rows = append(view.Rows, cells)
	}
	return view
}

// trajectoryChart builds the balance line for the result chart.
func trajectoryChart(points []core.TrajectoryPoint) chartPayload {
	p := chartPayload{Datasets: []chartDataset{{Label: "Patrimônio (R$)"}}}
	for _, tp := range points {
		p.Labels = append(p.Labels, tp.Period.String())
		p.Datasets[0].Data = append(p.Datasets[0].Data, tp.Balance)
	}
	return p
}

type simulationsPageView struct {
	Page         string
	Title        string
	DefaultStart string
}

type projectionView struct {
	Years          int
	Months         int
	TotalMonths    int
	ReachedAt      string
	AdjustedGoal   string
	AlreadyReached bool
	Granularities  []granularityOption
	Trajectory     tableView
	ChartJSON      template.JS
}

type rateView struct {
	MonthlyRate  string
	AnnualRate   string
	Years        int
	Months       int
	FinalBalance string
	AdjustedGoal string
}

// handleSimulationsPage serves the simulation forms on GET and dispatches
// submissions on POST: modo tempo asks how long the goal takes, modo taxa
// asks which rate fits a fixed horizon.
func (s *Server) handleSimulationsPage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		now := time.Now()
		start := core.YearMonth{Year: now.Year(), Month: now.Month()}
		s.render(w, r, "simulations_page", simulationsPageView{
			Page:         "/simulacoes",
			Title:        "Simulações",
			DefaultStart: start.String(),
		})
	case http.MethodPost:
		s.handleSimulationSubmit(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleSimulationSubmit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	mode := sanitizeInput(r.PostForm.Get("modo"))
	if mode == "" {
		mode = "tempo"
	}
	switch mode {
	case "tempo":
		s.runProjection(w, r)
	case "taxa":
		s.runRateSolve(w, r)
	default:
		UnprocessableEntityError("Modo de simulação inválido").Write(w)
	}
}

func (s *Server) runProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, err := parseSimulationForm(r.PostForm)
	if err != nil {
		CoreErrorResponse(err).Write(w)
		return
	}

	projection, err := core.Project(in)
	if err != nil {
		s.logger.WarnContext(ctx, "Goal projection failed",
			log.FieldOperation, log.OpProject,
			log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}

	view, err := buildProjectionView(r.PostForm, projection)
	if err != nil {
		CoreErrorResponse(err).Write(w)
		return
	}

	atomic.AddInt64(&s.simulationsRun, 1)
	s.logger.InfoContext(ctx, "Goal projection computed",
		log.FieldOperation, log.OpProject,
		"months", projection.TotalMonths)

	s.writeSimulationResult(w, r, "simulation_result", view, "tempo")
}

func (s *Server) runRateSolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, err := parseRateForm(r.PostForm)
	if err != nil {
		CoreErrorResponse(err).Write(w)
		return
	}

	solution, err := core.SolveRequiredRate(in)
	if err != nil {
		s.logger.WarnContext(ctx, "Rate solve failed",
			log.FieldOperation, log.OpSolve,
			log.FieldError, err.Error())
		CoreErrorResponse(err).Write(w)
		return
	}

	annual := math.Pow(1+solution.MonthlyRate, 12) - 1
	view := rateView{
		MonthlyRate:  formatRate(solution.MonthlyRate),
		AnnualRate:   formatRate(annual),
		Years:        solution.Years,
		Months:       solution.Months,
		FinalBalance: formatBRL(solution.FinalBalance),
		AdjustedGoal: formatBRL(solution.AdjustedGoal),
	}

	atomic.AddInt64(&s.simulationsRun, 1)
	s.logger.InfoContext(ctx, "Required rate solved",
		log.FieldOperation, log.OpSolve,
		"monthly_rate", solution.MonthlyRate)

	s.writeSimulationResult(w, r, "rate_result", view, "taxa")
}

// writeSimulationResult renders a result partial into the HTMX builder so
// the triggers ride along with the fragment.
func (s *Server) writeSimulationResult(w http.ResponseWriter, r *http.Request, name string, view any, mode string) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, view); err != nil {
		s.logger.ErrorContext(r.Context(), "Template render failed",
			"template", name,
			log.FieldError, err.Error())
		InternalServerError("Erro ao renderizar o resultado").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerSimulationDone(mode).
		TriggerSuccessNotification("Simulação concluída").
		BodyHTML(buf.String()).
		Write(w)
}

// buildProjectionView assembles the projection result, re-aggregating the
// trajectory at the requested granularity. Months render as the raw
// trajectory; coarser periods reduce with max, so the balance column shows
// each period's closing value.
func buildProjectionView(form url.Values, p *core.Projection) (projectionView, error) {
	view := projectionView{
		Years:        p.Years,
		Months:       p.Months,
		TotalMonths:  p.TotalMonths,
		ReachedAt:    p.ReachedAt.String(),
		AdjustedGoal: formatBRL(p.AdjustedGoal),
	}

	if len(p.Trajectory) == 0 {
		view.AlreadyReached = true
		return view, nil
	}

	dates := make([]core.Date, len(p.Trajectory))
	for i, tp := range p.Trajectory {
		dates[i] = tp.Period.Date()
	}
	offered, err := core.ValidGranularities(dates)
	if err != nil {
		return view, err
	}
	g, err := parseGranularityParam(form, offered)
	if err != nil {
		return view, err
	}
	view.Granularities = granularityOptions(offered, g)

	if g == core.Month {
		view.Trajectory = trajectoryTable(p.Trajectory)
	} else {
		agg, err := core.Aggregate(p.TrajectoryRecords(), trajectoryAggregation(g))
		if err != nil {
			return view, err
		}
		view.Trajectory = aggregatedTrajectoryTable(agg)
	}

	chart, err := json.Marshal(trajectoryChart(p.Trajectory))
	if err != nil {
		return view, err
	}
	view.ChartJSON = template.JS(chart)
	return view, nil
}
