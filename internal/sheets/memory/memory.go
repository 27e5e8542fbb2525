package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carteira/assets"
	"carteira/internal/core"

	ports "carteira/internal/sheets"
)

// Store serves datasets parsed from in-memory worksheet grids. It backs
// the demo mode and tests, so the app runs without a spreadsheet.
type Store struct {
	mu   sync.Mutex
	data map[string]*core.Dataset
}

// Ensure interface conformance
var _ ports.RecordReader = (*Store)(nil)

// New parses every dataset spec against the given worksheet grids up
// front, so a broken fixture fails at construction rather than at
// request time.
func New(worksheets map[string][][]any, specs []ports.DatasetSpec) (*Store, error) {
	if len(specs) == 0 {
		specs = ports.DefaultDatasets()
	}
	now := time.Now().UTC()
	data := make(map[string]*core.Dataset, len(specs))
	for _, spec := range specs {
		grid, ok := worksheets[spec.Worksheet]
		if !ok {
			return nil, fmt.Errorf("no worksheet %s for dataset %s", spec.Worksheet, spec.Name)
		}
		ds, err := ports.ParseGrid(grid, spec, now)
		if err != nil {
			return nil, err
		}
		data[spec.Name] = ds
	}
	return &Store{data: data}, nil
}

// NewDemo builds a store from the embedded demo worksheets.
func NewDemo() (*Store, error) {
	grids, err := assets.DemoWorksheets()
	if err != nil {
		return nil, err
	}
	return New(grids, nil)
}

func (s *Store) ReadRecords(_ context.Context, dataset string) (*core.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.data[dataset]
	if !ok {
		return nil, fmt.Errorf("unknown dataset: %s", dataset)
	}
	return ds, nil
}

// Put replaces one dataset. Tests use it to stage specific fixtures.
func (s *Store) Put(ds *core.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ds.Name] = ds
}
