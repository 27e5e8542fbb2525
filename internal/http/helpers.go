package http

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// formatBRL renders an amount in currency units the way the spreadsheet
// does: R$1.234,56. Missing values render as "—".
func formatBRL(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "—"
	}
	cents := decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return money.New(cents, money.BRL).Display()
}

// formatPercent renders a sheet fraction (0.5361) as a display percentage
// with two decimals: 53,61%.
func formatPercent(fraction float64) string {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return "—"
	}
	v := decimal.NewFromFloat(fraction * 100).Round(2)
	return strings.Replace(v.StringFixed(2), ".", ",", 1) + "%"
}

// formatQuantity renders a plain number with a decimal comma and no
// trailing zeros.
func formatQuantity(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "—"
	}
	return strings.Replace(decimal.NewFromFloat(v).String(), ".", ",", 1)
}

// formatCell picks a display format from the value type and the column
// name: columns marked (R$) hold money, columns with a % hold sheet
// fractions, remaining numbers are quantities. Dates render day first.
func formatCell(column string, value any) string {
	switch v := value.(type) {
	case core.Date:
		if v.IsZero() {
			return ""
		}
		return v.Format("02/01/2006")
	case float64:
		switch {
		case strings.Contains(column, "R$"):
			return formatBRL(v)
		case strings.Contains(column, "%"):
			return formatPercent(v)
		default:
			return formatQuantity(v)
		}
	case string:
		return v
	case nil:
		return ""
	}
	return fmt.Sprint(value)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// tableView is the row/column shape the data_table template renders.
type tableView struct {
	Headers []string
	Rows    [][]string
}

// datasetTable renders a dataset for display, keeping the sheet's column
// order.
func datasetTable(ds *core.Dataset) tableView {
	view := tableView{Headers: ds.Columns}
	for _, rec := range ds.Rows {
		row := make([]string, len(ds.Columns))
		for i, col := range ds.Columns {
			row[i] = formatCell(col, rec[col])
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}

// resultTable renders an aggregation result with the bucket column shown
// as Período and value columns renamed through headers ("sum - Preço Total
// (R$)" reads better as "Total (R$)").
func resultTable(t *core.ResultTable, headers map[string]string) tableView {
	cols := []string{"Período"}
	cols = append(cols, t.CategoryColumns...)
	for _, vc := range t.ValueColumns {
		if h, ok := headers[vc]; ok {
			cols = append(cols, h)
		} else {
			cols = append(cols, vc)
		}
	}

	view := tableView{Headers: cols}
	for _, row := range t.Rows {
		cells := make([]string, 0, len(cols))
		cells = append(cells, row.Bucket)
		cells = append(cells, row.Categories...)
		for i, vc := range t.ValueColumns {
			header := cols[1+len(t.CategoryColumns)+i]
			cells = append(cells, formatCell(header, row.Value(vc)))
		}
		view.Rows = append(view.Rows, cells)
	}
	return view
}

// granularityOption is one entry of the period selector.
type granularityOption struct {
	Value    core.Granularity
	Label    string
	Selected bool
}

// granularityOptions builds the selector entries, marking the active one.
func granularityOptions(offered []core.Granularity, selected core.Granularity) []granularityOption {
	out := make([]granularityOption, 0, len(offered))
	for _, g := range offered {
		out = append(out, granularityOption{Value: g, Label: g.Label(), Selected: g == selected})
	}
	return out
}
