package sheets

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// ParseGrid turns a raw worksheet value grid into a typed dataset according
// to spec. Declared date columns become core.Date values, declared numeric
// columns become float64 with NaN for unparseable cells, everything else is
// kept as trimmed text. Rows whose cells are all empty are skipped.
//
// When the spec names a date column and the sheet has no "Mês" column, one
// is derived from the date as a "2006-01" label so month groupings work
// without touching the sheet.
func ParseGrid(values [][]any, spec DatasetSpec, fetchedAt time.Time) (*core.Dataset, error) {
	headerRow, dataStart, dataEnd := 0, 1, len(values)
	maxCols := 0
	if spec.Slice != nil {
		headerRow = spec.Slice.HeaderRow
		dataStart = spec.Slice.DataStart
		dataEnd = spec.Slice.DataEnd
		maxCols = spec.Slice.MaxCols
	}
	if headerRow >= len(values) {
		return nil, fmt.Errorf("dataset %s: worksheet %s has no header row", spec.Name, spec.Worksheet)
	}
	if dataEnd > len(values) {
		dataEnd = len(values)
	}
	if dataStart > dataEnd {
		dataStart = dataEnd
	}

	header := headerCells(values[headerRow], maxCols)
	if len(header) == 0 {
		return nil, fmt.Errorf("dataset %s: worksheet %s has an empty header", spec.Name, spec.Worksheet)
	}

	kinds := make(map[string]core.FieldKind, len(header)+1)
	for _, col := range header {
		kinds[col] = core.KindText
	}
	for _, col := range spec.NumberFields {
		if _, ok := kinds[col]; !ok {
			return nil, fmt.Errorf("dataset %s: column %q not found in worksheet %s", spec.Name, col, spec.Worksheet)
		}
		kinds[col] = core.KindNumber
	}
	for _, col := range spec.CategoryFields {
		if _, ok := kinds[col]; !ok {
			return nil, fmt.Errorf("dataset %s: column %q not found in worksheet %s", spec.Name, col, spec.Worksheet)
		}
	}
	if spec.DateField != "" {
		if _, ok := kinds[spec.DateField]; !ok {
			return nil, fmt.Errorf("dataset %s: column %q not found in worksheet %s", spec.Name, spec.DateField, spec.Worksheet)
		}
		kinds[spec.DateField] = core.KindDate
	}

	columns := append([]string(nil), header...)
	deriveMonth := spec.DateField != "" && !containsColumn(header, "Mês")
	if deriveMonth {
		columns = append(columns, "Mês")
		kinds["Mês"] = core.KindText
	}

	rows := values[dataStart:dataEnd]
	if spec.DropLastRow && len(rows) > 0 {
		rows = rows[:len(rows)-1]
	}

	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		if emptyRow(row) {
			continue
		}
		rec := make(core.Record, len(columns))
		for i, col := range header {
			cell := safeGet(row, i)
			switch kinds[col] {
			case core.KindDate:
				rec[col] = parseDate(cell)
			case core.KindNumber:
				rec[col] = parseNumber(cell)
			default:
				rec[col] = cellString(cell)
			}
		}
		if deriveMonth {
			if d := rec.DateField(spec.DateField); !d.IsZero() {
				rec["Mês"] = d.PeriodLabel(core.Month)
			} else {
				rec["Mês"] = ""
			}
		}
		records = append(records, rec)
	}

	return &core.Dataset{
		Name:      spec.Name,
		Columns:   columns,
		Kinds:     kinds,
		Rows:      records,
		FetchedAt: fetchedAt,
	}, nil
}

// headerCells trims the header row and cuts trailing blanks. maxCols keeps
// the first N columns, -1 drops the last one, 0 keeps everything.
func headerCells(row []any, maxCols int) []string {
	header := make([]string, 0, len(row))
	for _, cell := range row {
		header = append(header, cellString(cell))
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	switch {
	case maxCols > 0 && maxCols < len(header):
		header = header[:maxCols]
	case maxCols == -1 && len(header) > 0:
		header = header[:len(header)-1]
	}
	return header
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
}

// parseDate reads a cell as a calendar date. Unparseable cells come back as
// the zero date, which aggregation later drops, matching how blank dates in
// the sheet behave.
func parseDate(v any) core.Date {
	s, ok := v.(string)
	if !ok {
		return core.Date{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day())
		}
	}
	return core.Date{}
}

// parseNumber reads a cell as a float64, coping with Brazilian currency
// formatting. "R$ 1.234,56" and "1234.56" both parse; anything else
// becomes NaN so reducers can skip it.
func parseNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return parseNumberString(n)
	default:
		return math.NaN()
	}
}

func parseNumberString(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return math.NaN()
	}
	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		// Rightmost separator is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.NaN()
	}
	return d.InexactFloat64()
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func safeGet(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func emptyRow(row []any) bool {
	for _, cell := range row {
		if cellString(cell) != "" {
			return false
		}
	}
	return true
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
