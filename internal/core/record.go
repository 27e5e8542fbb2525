package core

import (
	"errors"
	"math"
	"time"
)

// FieldKind classifies a dataset column.
type FieldKind string

const (
	KindDate   FieldKind = "date"
	KindNumber FieldKind = "number"
	KindText   FieldKind = "text"
)

type (
	// Record is one row of a dataset, keyed by field name. Values are Date
	// for date fields, float64 for numeric fields (NaN marks a cell that
	// did not parse) and string for categorical fields. Engine operations
	// treat records as read-only.
	Record map[string]any

	// Dataset is a named, ordered collection of records with a column
	// schema, as produced by the record sources.
	Dataset struct {
		Name      string
		Columns   []string
		Kinds     map[string]FieldKind
		Rows      []Record
		FetchedAt time.Time
	}
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrFieldNotFound      = errors.New("field not found")
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrAggregation        = errors.New("aggregation error")
	ErrGoalUnreachable    = errors.New("goal not reachable")
	ErrNoSolution         = errors.New("no attainable rate")
)

// Has reports whether the field exists on the record, whatever its value.
func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// DateField returns the named field as a Date, zero when absent or not a
// date.
func (r Record) DateField(name string) Date {
	if d, ok := r[name].(Date); ok {
		return d
	}
	return Date{}
}

// NumberField returns the named field as a float64, NaN when absent or not
// numeric.
func (r Record) NumberField(name string) float64 {
	if f, ok := r[name].(float64); ok {
		return f
	}
	return math.NaN()
}

// TextField returns the named field as a string, empty when absent.
func (r Record) TextField(name string) string {
	if s, ok := r[name].(string); ok {
		return s
	}
	return ""
}

// Clone returns a copy of the record sharing no map storage with the
// original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Kind returns the declared kind of a column, empty when unknown.
func (ds *Dataset) Kind(column string) FieldKind {
	return ds.Kinds[column]
}

// Dates returns one Date per row for a date column; rows whose cell did not
// parse contribute the zero Date.
func (ds *Dataset) Dates(field string) []Date {
	out := make([]Date, len(ds.Rows))
	for i, row := range ds.Rows {
		out[i] = row.DateField(field)
	}
	return out
}

// Len returns the number of rows.
func (ds *Dataset) Len() int {
	return len(ds.Rows)
}

// Filter returns the rows for which keep is true, preserving order. Rows
// are shared, not copied.
func (ds *Dataset) Filter(keep func(Record) bool) []Record {
	var out []Record
	for _, row := range ds.Rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

// Validate checks that the schema covers every declared column.
func (ds *Dataset) Validate() error {
	if ds.Name == "" {
		return errors.New("dataset name cannot be empty")
	}
	if len(ds.Columns) == 0 {
		return errors.New("dataset has no columns")
	}
	for _, c := range ds.Columns {
		if _, ok := ds.Kinds[c]; !ok {
			return errors.New("column " + c + " has no declared kind")
		}
	}
	return nil
}
