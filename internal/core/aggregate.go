package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Reducer names a reduction applied to every value field of a bucket.
type Reducer string

const (
	Sum   Reducer = "sum"
	Max   Reducer = "max"
	Min   Reducer = "min"
	Count Reducer = "count"
	Mean  Reducer = "mean"
)

type (
	// AggregationSpec describes one aggregation pass over a set of records.
	AggregationSpec struct {
		BucketField    string      // date field that buckets rows
		Granularity    Granularity // calendar size of a bucket
		ValueFields    []string    // numeric fields to reduce
		Reducers       []Reducer   // applied to every value field
		CategoryFields []string    // optional extra grouping keys
	}

	// AggregatedRow is one output row: a bucket label, the category values
	// identifying the partition, and one reduced value per (field, reducer)
	// pair.
	AggregatedRow struct {
		Bucket     string
		Categories []string
		Values     map[string]float64
	}

	// ResultTable is a tidy aggregation result. Column order is
	// deterministic: the bucket column, the category columns, then a
	// "{reducer} - {field}" column per value field and reducer.
	ResultTable struct {
		BucketColumn    string
		CategoryColumns []string
		ValueColumns    []string
		Rows            []AggregatedRow
	}
)

// Value returns the named reduced column of the row, NaN when absent.
func (r AggregatedRow) Value(column string) float64 {
	if v, ok := r.Values[column]; ok {
		return v
	}
	return math.NaN()
}

// Columns returns the full output column order.
func (t *ResultTable) Columns() []string {
	cols := make([]string, 0, 1+len(t.CategoryColumns)+len(t.ValueColumns))
	cols = append(cols, t.BucketColumn)
	cols = append(cols, t.CategoryColumns...)
	cols = append(cols, t.ValueColumns...)
	return cols
}

// ValueColumn names the output column holding reducer applied to field.
func ValueColumn(r Reducer, field string) string {
	return string(r) + " - " + field
}

// Aggregate groups records into calendar buckets, optionally further split
// by category fields, and reduces every value field with every reducer.
// Rows come back sorted by bucket label and category values. Records with
// an unset bucket date are left out. sum, mean, max and min skip NaN
// values; count counts the values that were present. The input records are
// never modified.
func Aggregate(records []Record, spec AggregationSpec) (*ResultTable, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records to aggregate", ErrInvalidInput)
	}

	parts := make(map[string]*partition)
	for i, rec := range records {
		if !rec.Has(spec.BucketField) {
			return nil, fmt.Errorf("%w: %q (record %d)", ErrFieldNotFound, spec.BucketField, i)
		}
		bucketDate, err := bucketValue(rec[spec.BucketField])
		if err != nil {
			return nil, fmt.Errorf("%w: bucket field %q, record %d: %v", ErrAggregation, spec.BucketField, i, err)
		}
		categories := make([]string, len(spec.CategoryFields))
		for ci, cf := range spec.CategoryFields {
			v, ok := rec[cf]
			if !ok {
				return nil, fmt.Errorf("%w: %q (record %d)", ErrFieldNotFound, cf, i)
			}
			categories[ci] = categoryString(v)
		}

		if bucketDate.IsZero() {
			continue
		}
		label := bucketDate.PeriodLabel(spec.Granularity)
		key := label + "\x1f" + strings.Join(categories, "\x1f")
		p, ok := parts[key]
		if !ok {
			p = newPartition(label, categories, spec.ValueFields)
			parts[key] = p
		}

		for _, vf := range spec.ValueFields {
			v, ok := rec[vf]
			if !ok {
				return nil, fmt.Errorf("%w: %q (record %d)", ErrFieldNotFound, vf, i)
			}
			switch n := v.(type) {
			case float64:
				p.acc[vf].add(n)
			case nil:
				// missing value, skipped like NaN
			default:
				return nil, fmt.Errorf("%w: value field %q holds %T, want a number (record %d)", ErrAggregation, vf, v, i)
			}
		}
	}

	valueCols := make([]string, 0, len(spec.ValueFields)*len(spec.Reducers))
	for _, vf := range spec.ValueFields {
		for _, r := range spec.Reducers {
			valueCols = append(valueCols, ValueColumn(r, vf))
		}
	}

	rows := make([]AggregatedRow, 0, len(parts))
	for _, p := range parts {
		values := make(map[string]float64, len(valueCols))
		for _, vf := range spec.ValueFields {
			for _, r := range spec.Reducers {
				values[ValueColumn(r, vf)] = p.acc[vf].reduce(r)
			}
		}
		rows = append(rows, AggregatedRow{Bucket: p.bucket, Categories: p.categories, Values: values})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bucket != rows[j].Bucket {
			return rows[i].Bucket < rows[j].Bucket
		}
		for k := range rows[i].Categories {
			if rows[i].Categories[k] != rows[j].Categories[k] {
				return rows[i].Categories[k] < rows[j].Categories[k]
			}
		}
		return false
	})

	return &ResultTable{
		BucketColumn:    spec.BucketField,
		CategoryColumns: append([]string(nil), spec.CategoryFields...),
		ValueColumns:    valueCols,
		Rows:            rows,
	}, nil
}

// AggregateField is the single value field, single reducer convenience form
// of Aggregate.
func AggregateField(records []Record, bucketField, valueField string, g Granularity, r Reducer, categoryFields ...string) (*ResultTable, error) {
	return Aggregate(records, AggregationSpec{
		BucketField:    bucketField,
		Granularity:    g,
		ValueFields:    []string{valueField},
		Reducers:       []Reducer{r},
		CategoryFields: categoryFields,
	})
}

func (s AggregationSpec) validate() error {
	if s.BucketField == "" {
		return fmt.Errorf("%w: bucket field is required", ErrInvalidInput)
	}
	if len(s.ValueFields) == 0 {
		return fmt.Errorf("%w: at least one value field is required", ErrInvalidInput)
	}
	if len(s.Reducers) == 0 {
		return fmt.Errorf("%w: at least one reducer is required", ErrInvalidInput)
	}
	if !s.Granularity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, s.Granularity)
	}
	for _, r := range s.Reducers {
		switch r {
		case Sum, Max, Min, Count, Mean:
		default:
			return fmt.Errorf("%w: unknown reducer %q", ErrInvalidInput, r)
		}
	}
	return nil
}

type partition struct {
	bucket     string
	categories []string
	acc        map[string]*fieldAcc
}

func newPartition(bucket string, categories []string, valueFields []string) *partition {
	acc := make(map[string]*fieldAcc, len(valueFields))
	for _, vf := range valueFields {
		acc[vf] = &fieldAcc{}
	}
	return &partition{bucket: bucket, categories: categories, acc: acc}
}

// fieldAcc accumulates one value field of one partition. All reducers
// derive from the same running sums.
type fieldAcc struct {
	sum   float64
	count int
	max   float64
	min   float64
}

func (a *fieldAcc) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	if a.count == 0 || v < a.min {
		a.min = v
	}
	a.sum += v
	a.count++
}

func (a *fieldAcc) reduce(r Reducer) float64 {
	switch r {
	case Sum:
		return a.sum
	case Count:
		return float64(a.count)
	case Mean:
		if a.count == 0 {
			return math.NaN()
		}
		return a.sum / float64(a.count)
	case Max:
		if a.count == 0 {
			return math.NaN()
		}
		return a.max
	case Min:
		if a.count == 0 {
			return math.NaN()
		}
		return a.min
	}
	return math.NaN()
}

func bucketValue(v any) (Date, error) {
	switch d := v.(type) {
	case Date:
		return d, nil
	case nil:
		return Date{}, nil
	default:
		return Date{}, fmt.Errorf("holds %T, want a date", v)
	}
}

func categoryString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		if math.IsNaN(c) {
			return ""
		}
		return strconv.FormatFloat(c, 'f', -1, 64)
	case Date:
		if c.IsZero() {
			return ""
		}
		return c.Format("2006-01-02")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
