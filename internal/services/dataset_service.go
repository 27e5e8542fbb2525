package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/sheets"
)

// DefaultCacheTTL is how long a loaded dataset stays served from memory
// before the next request goes back to the backend.
const DefaultCacheTTL = 10 * time.Minute

// DatasetService serves normalized datasets from a backend reader through a
// TTL'd LRU cache and derives the typed wallet summaries from them.
type DatasetService struct {
	reader sheets.RecordReader
	specs  map[string]sheets.DatasetSpec
	order  []string
	cache  *cache.LRUCache[*core.Dataset]
}

// NewDatasetService creates a dataset service over reader. A nil specs
// slice selects the standard dataset table; a non-positive ttl selects
// DefaultCacheTTL.
func NewDatasetService(reader sheets.RecordReader, specs []sheets.DatasetSpec, ttl time.Duration) *DatasetService {
	if specs == nil {
		specs = sheets.DefaultDatasets()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	order := make([]string, 0, len(specs))
	for _, s := range specs {
		order = append(order, s.Name)
	}
	return &DatasetService{
		reader: reader,
		specs:  sheets.SpecsByName(specs),
		order:  order,
		cache:  cache.NewLRUCache[*core.Dataset](len(specs), ttl),
	}
}

// Load returns one dataset, from cache when a fresh copy is there.
func (s *DatasetService) Load(ctx context.Context, dataset string) (*core.Dataset, error) {
	if _, ok := s.specs[dataset]; !ok {
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
	if ds, ok := s.cache.Get(dataset); ok {
		return ds, nil
	}
	ds, err := s.reader.ReadRecords(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", dataset, err)
	}
	s.cache.Set(dataset, ds)
	slog.DebugContext(ctx, "Dataset loaded into cache",
		"dataset", dataset, "rows", ds.Len())
	return ds, nil
}

// LoadAll loads every configured dataset concurrently and returns them by
// name. The first load error cancels the rest.
func (s *DatasetService) LoadAll(ctx context.Context) (map[string]*core.Dataset, error) {
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	out := make(map[string]*core.Dataset, len(s.order))
	for _, name := range s.order {
		g.Go(func() error {
			ds, err := s.Load(ctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = ds
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops one dataset from the cache so the next load hits the
// backend again.
func (s *DatasetService) Invalidate(ctx context.Context, dataset string) {
	s.cache.Delete(dataset)
	slog.InfoContext(ctx, "Dataset cache invalidated", "dataset", dataset)
}

// InvalidateAll drops every dataset from the cache.
func (s *DatasetService) InvalidateAll(ctx context.Context) {
	for _, name := range s.order {
		s.cache.Delete(name)
	}
	slog.InfoContext(ctx, "Dataset cache invalidated", "datasets", len(s.order))
}

// Cache exposes the dataset cache for cleanup registration.
func (s *DatasetService) Cache() *cache.LRUCache[*core.Dataset] {
	return s.cache
}

// Datasets returns the dataset specs in table order.
func (s *DatasetService) Datasets() []sheets.DatasetSpec {
	out := make([]sheets.DatasetSpec, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.specs[name])
	}
	return out
}

// Spec returns the spec of one dataset.
func (s *DatasetService) Spec(dataset string) (sheets.DatasetSpec, bool) {
	spec, ok := s.specs[dataset]
	return spec, ok
}

// Overview derives the headline wallet metrics from the overview dataset.
func (s *DatasetService) Overview(ctx context.Context) (*core.WalletOverview, error) {
	ds, err := s.Load(ctx, sheets.DatasetOverview)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("overview dataset is empty")
	}
	row := ds.Rows[0]
	return &core.WalletOverview{
		Spent:         row.NumberField("Gasto (R$)"),
		Invested:      row.NumberField("Investido (R$)"),
		VariationPct:  row.NumberField("Variação (%)"),
		TotalGain:     row.NumberField("Ganho Total (R$)"),
		PassiveIncome: row.NumberField("Proventos (R$)"),
		Sold:          row.NumberField("Vendido (R$)"),
		SaleProfit:    row.NumberField("Lucro Vendas (R$)"),
	}, nil
}

// Allocation derives the asset class split from the allocation dataset,
// in sheet order.
func (s *DatasetService) Allocation(ctx context.Context) ([]core.AllocationSlice, error) {
	ds, err := s.Load(ctx, sheets.DatasetAllocation)
	if err != nil {
		return nil, err
	}
	out := make([]core.AllocationSlice, 0, ds.Len())
	for _, row := range ds.Rows {
		out = append(out, core.AllocationSlice{
			Class:      row.TextField("Classe"),
			IdealPct:   row.NumberField("% Ideal"),
			ActualPct:  row.NumberField("% Atual"),
			Amount:     row.NumberField("Total (R$)"),
			Suggestion: row.TextField("Sugestão"),
		})
	}
	return out, nil
}

// Goal derives the wallet goal progress from the goal dataset.
func (s *DatasetService) Goal(ctx context.Context) (*core.WalletGoal, error) {
	ds, err := s.Load(ctx, sheets.DatasetGoal)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("goal dataset is empty")
	}
	row := ds.Rows[0]
	return &core.WalletGoal{
		Target:      row.NumberField("Meta (R$)"),
		Reached:     row.NumberField("Valor Atual (R$)"),
		ProgressPct: row.NumberField("Progresso (%)"),
	}, nil
}

// Milestones marks the wealth ladder against the current wallet value.
func (s *DatasetService) Milestones(ctx context.Context) ([]core.Milestone, error) {
	goal, err := s.Goal(ctx)
	if err != nil {
		return nil, err
	}
	return core.Milestones(goal.Reached), nil
}

// GranularityOptions returns the aggregation granularities worth offering
// for a dated dataset, in menu order.
func (s *DatasetService) GranularityOptions(ctx context.Context, dataset string) ([]core.Granularity, error) {
	spec, ok := s.specs[dataset]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
	if spec.DateField == "" {
		return nil, fmt.Errorf("dataset %s has no date field", dataset)
	}
	ds, err := s.Load(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return core.ValidGranularities(ds.Dates(spec.DateField))
}

// AggregateDataset runs one aggregation pass over a cached dataset.
func (s *DatasetService) AggregateDataset(ctx context.Context, dataset string, agg core.AggregationSpec) (*core.ResultTable, error) {
	ds, err := s.Load(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return core.Aggregate(ds.Rows, agg)
}
