package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"carteira/internal/core"
)

// snapshotSchema is the JSON shape stored in snapshots.schema_json.
type snapshotSchema struct {
	Columns []string                  `json:"columns"`
	Kinds   map[string]core.FieldKind `json:"kinds"`
}

const snapshotDateLayout = "2006-01-02"

func encodeSchema(ds *core.Dataset) (string, error) {
	b, err := json.Marshal(snapshotSchema{Columns: ds.Columns, Kinds: ds.Kinds})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeRows serializes records as a JSON array. JSON has no NaN, so
// unparsed numbers and unset dates are stored as null and restored on
// decode.
func encodeRows(ds *core.Dataset) (string, error) {
	out := make([]map[string]any, len(ds.Rows))
	for i, row := range ds.Rows {
		enc := make(map[string]any, len(row))
		for _, col := range ds.Columns {
			v, ok := row[col]
			if !ok {
				continue
			}
			switch ds.Kinds[col] {
			case core.KindDate:
				d, _ := v.(core.Date)
				if d.IsZero() {
					enc[col] = nil
				} else {
					enc[col] = d.Format(snapshotDateLayout)
				}
			case core.KindNumber:
				f, isFloat := v.(float64)
				if !isFloat || math.IsNaN(f) || math.IsInf(f, 0) {
					enc[col] = nil
				} else {
					enc[col] = f
				}
			default:
				s, _ := v.(string)
				enc[col] = s
			}
		}
		out[i] = enc
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSnapshot(dataset, fetchedAt, schemaJSON, rowsJSON string) (*core.Dataset, error) {
	var schema snapshotSchema
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("decode schema for %s: %w", dataset, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(rowsJSON), &raw); err != nil {
		return nil, fmt.Errorf("decode rows for %s: %w", dataset, err)
	}

	rows := make([]core.Record, len(raw))
	for i, enc := range raw {
		rec := make(core.Record, len(enc))
		for _, col := range schema.Columns {
			v, ok := enc[col]
			if !ok {
				continue
			}
			switch schema.Kinds[col] {
			case core.KindDate:
				rec[col] = decodeDate(v)
			case core.KindNumber:
				if f, isFloat := v.(float64); isFloat {
					rec[col] = f
				} else {
					rec[col] = math.NaN()
				}
			default:
				s, _ := v.(string)
				rec[col] = s
			}
		}
		rows[i] = rec
	}

	fetched, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at for %s: %w", dataset, err)
	}

	return &core.Dataset{
		Name:      dataset,
		Columns:   schema.Columns,
		Kinds:     schema.Kinds,
		Rows:      rows,
		FetchedAt: fetched,
	}, nil
}

func decodeDate(v any) core.Date {
	s, ok := v.(string)
	if !ok {
		return core.Date{}
	}
	t, err := time.Parse(snapshotDateLayout, s)
	if err != nil {
		return core.Date{}
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}
