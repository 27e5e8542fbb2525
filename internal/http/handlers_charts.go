package http

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/sheets"
)

// chartPayload is the JSON shape the Chart.js glue consumes.
type chartPayload struct {
	Labels   []string       `json:"labels"`
	Datasets []chartDataset `json:"datasets"`
}

type chartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// pivotChart turns a bucket by category aggregation into one series per
// category. Buckets a category never hit are zero-filled so stacked bars
// line up, and zeros keep the payload valid JSON where NaN would not be.
func pivotChart(t *core.ResultTable, valueColumn, seriesFallback string) chartPayload {
	var labels []string
	labelIndex := make(map[string]int)
	for _, row := range t.Rows {
		if _, ok := labelIndex[row.Bucket]; !ok {
			labelIndex[row.Bucket] = len(labels)
			labels = append(labels, row.Bucket)
		}
	}

	seriesFor := func(row core.AggregatedRow) string {
		if len(row.Categories) == 0 {
			return seriesFallback
		}
		return strings.Join(row.Categories, " / ")
	}

	series := make(map[string][]float64)
	for _, row := range t.Rows {
		name := seriesFor(row)
		if _, ok := series[name]; !ok {
			series[name] = make([]float64, len(labels))
		}
		v := row.Value(valueColumn)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		series[name][labelIndex[row.Bucket]] = v
	}

	order := make([]string, 0, len(series))
	for name := range series {
		order = append(order, name)
	}
	sort.Strings(order)

	payload := chartPayload{Labels: labels}
	for _, name := range order {
		payload.Datasets = append(payload.Datasets, chartDataset{Label: name, Data: series[name]})
	}
	return payload
}

// accumulate replaces every series with its running total.
func accumulate(p chartPayload) chartPayload {
	for _, ds := range p.Datasets {
		var total float64
		for i, v := range ds.Data {
			total += v
			ds.Data[i] = total
		}
	}
	return p
}

// cachedChart serves a payload from the chart cache, building and storing
// it on a miss. Keys embed the dataset fetch time, so refreshes invalidate
// naturally.
func (s *Server) cachedChart(key string, build func() (chartPayload, error)) (chartPayload, error) {
	if payload, ok := s.chartCache.Get(key); ok {
		atomic.AddInt64(&s.chartHits, 1)
		return payload, nil
	}
	payload, err := build()
	if err != nil {
		return chartPayload{}, err
	}
	atomic.AddInt64(&s.chartMisses, 1)
	s.chartCache.Set(key, payload)
	return payload, nil
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, payload chartPayload, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to build chart payload",
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		w.WriteHeader(statusForError(err))
		_ = json.NewEncoder(w).Encode(map[string]string{"error": errorMessage(err)})
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// handleTransactionsChart serves purchase or sale totals by period, one
// series per asset type. side selects C (purchases) or V (sales).
func (s *Server) handleTransactionsChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	side := strings.ToUpper(sanitizeInput(r.URL.Query().Get("side")))
	if side == "" {
		side = "C"
	}
	if side != "C" && side != "V" {
		s.writeChart(w, r, chartPayload{}, fmt.Errorf("%w: lado %q, use C ou V", core.ErrInvalidInput, side))
		return
	}

	ds, err := s.datasets.Load(ctx, sheets.DatasetTransactions)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}
	offered, err := s.datasets.GranularityOptions(ctx, sheets.DatasetTransactions)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}
	g, err := parseGranularityParam(r.URL.Query(), offered)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}

	key := fmt.Sprintf("lancamentos|%s|%s|%d", g, side, ds.FetchedAt.UnixNano())
	payload, err := s.cachedChart(key, func() (chartPayload, error) {
		rows := ds.Filter(func(rec core.Record) bool {
			return rec.TextField("Compra/Venda") == side
		})
		if len(rows) == 0 {
			return chartPayload{}, nil
		}
		agg, err := core.Aggregate(rows, core.AggregationSpec{
			BucketField:    "Data Negócio",
			Granularity:    g,
			ValueFields:    []string{"Preço Total (R$)"},
			Reducers:       []core.Reducer{core.Sum},
			CategoryFields: []string{"Tipo Ativo"},
		})
		if err != nil {
			return chartPayload{}, err
		}
		return pivotChart(agg, core.ValueColumn(core.Sum, "Preço Total (R$)"), "Total"), nil
	})
	s.writeChart(w, r, payload, err)
}

// handleDividendsChart serves dividend totals by period, one series per
// asset type.
func (s *Server) handleDividendsChart(w http.ResponseWriter, r *http.Request) {
	s.dividendsChart(w, r, "proventos", false)
}

// handleDividendsAccumulatedChart serves the running dividend total.
func (s *Server) handleDividendsAccumulatedChart(w http.ResponseWriter, r *http.Request) {
	s.dividendsChart(w, r, "proventos-acumulado", true)
}

func (s *Server) dividendsChart(w http.ResponseWriter, r *http.Request, name string, accumulated bool) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	ds, err := s.datasets.Load(ctx, sheets.DatasetDividends)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}
	offered, err := s.datasets.GranularityOptions(ctx, sheets.DatasetDividends)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}
	g, err := parseGranularityParam(r.URL.Query(), offered)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}

	spec := core.AggregationSpec{
		BucketField: "Data",
		Granularity: g,
		ValueFields: []string{"Valor Líquido (R$)"},
		Reducers:    []core.Reducer{core.Sum},
	}
	if !accumulated {
		spec.CategoryFields = []string{"Tipo Ativo"}
	}

	key := fmt.Sprintf("%s|%s|%d", name, g, ds.FetchedAt.UnixNano())
	payload, err := s.cachedChart(key, func() (chartPayload, error) {
		if len(ds.Rows) == 0 {
			return chartPayload{}, nil
		}
		agg, err := core.Aggregate(ds.Rows, spec)
		if err != nil {
			return chartPayload{}, err
		}
		p := pivotChart(agg, core.ValueColumn(core.Sum, "Valor Líquido (R$)"), "Acumulado (R$)")
		if accumulated {
			p = accumulate(p)
		}
		return p, nil
	})
	s.writeChart(w, r, payload, err)
}

// handleAllocationChart serves the asset class split as a pie payload.
func (s *Server) handleAllocationChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	ds, err := s.datasets.Load(ctx, sheets.DatasetAllocation)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}

	key := fmt.Sprintf("alocacao|%d", ds.FetchedAt.UnixNano())
	payload, err := s.cachedChart(key, func() (chartPayload, error) {
		allocation, err := s.datasets.Allocation(ctx)
		if err != nil {
			return chartPayload{}, err
		}
		p := chartPayload{Datasets: []chartDataset{{Label: "Total (R$)"}}}
		for _, slice := range allocation {
			amount := slice.Amount
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				amount = 0
			}
			p.Labels = append(p.Labels, slice.Class)
			p.Datasets[0].Data = append(p.Datasets[0].Data, amount)
		}
		return p, nil
	})
	s.writeChart(w, r, payload, err)
}

// handlePositionsChart serves a holdings pie for one position dataset,
// split by asset or by sector.
func (s *Server) handlePositionsChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	slug := sanitizeInput(r.URL.Query().Get("dataset"))
	var page *positionPage
	for i := range positionPages {
		if positionPages[i].Slug == slug {
			page = &positionPages[i]
			break
		}
	}
	if page == nil {
		s.writeChart(w, r, chartPayload{}, fmt.Errorf("%w: carteira %q desconhecida", core.ErrInvalidInput, slug))
		return
	}

	by := sanitizeInput(r.URL.Query().Get("por"))
	if by == "" {
		by = "ativo"
	}
	var field string
	switch by {
	case "ativo":
		field = "Ativo"
	case "setor":
		field = page.SectorField
	default:
		s.writeChart(w, r, chartPayload{}, fmt.Errorf("%w: agrupamento %q, use ativo ou setor", core.ErrInvalidInput, by))
		return
	}

	ds, err := s.datasets.Load(ctx, page.Dataset)
	if err != nil {
		s.writeChart(w, r, chartPayload{}, err)
		return
	}

	key := fmt.Sprintf("posicoes|%s|%s|%d", page.Slug, by, ds.FetchedAt.UnixNano())
	payload, err := s.cachedChart(key, func() (chartPayload, error) {
		totals := make(map[string]float64)
		for _, rec := range ds.Rows {
			label := rec.TextField(field)
			if label == "" {
				label = "Outros"
			}
			v := rec.NumberField("Total (R$)")
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			totals[label] += v
		}

		labels := make([]string, 0, len(totals))
		for label := range totals {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		p := chartPayload{Datasets: []chartDataset{{Label: "Total (R$)"}}}
		for _, label := range labels {
			p.Labels = append(p.Labels, label)
			p.Datasets[0].Data = append(p.Datasets[0].Data, totals[label])
		}
		return p, nil
	})
	s.writeChart(w, r, payload, err)
}
