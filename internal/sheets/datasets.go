package sheets

import (
	"fmt"
	"time"
)

type (
	// DatasetSpec declares where a dataset lives and how its columns are
	// typed. Columns listed nowhere stay textual, matching how the wallet
	// spreadsheet is read.
	DatasetSpec struct {
		Name           string
		Worksheet      string
		DateField      string
		NumberFields   []string
		CategoryFields []string
		// DropLastRow cuts a trailing totals row.
		DropLastRow bool
		// Slice extracts a sub-table from a worksheet holding several
		// stacked tables, like the wallet's general sheet.
		Slice *GridSlice
		// MaxAge is how old a snapshot may grow before a refresh is due.
		MaxAge time.Duration
	}

	// GridSlice addresses one table inside a raw value grid. Row indices
	// are zero-based over the fetched values. DataEnd is exclusive.
	// MaxCols keeps the first N columns, 0 keeps all, -1 drops the last.
	GridSlice struct {
		HeaderRow int
		DataStart int
		DataEnd   int
		MaxCols   int
	}
)

// Dataset names used across the application.
const (
	DatasetTransactions    = "transactions"
	DatasetDividends       = "dividends"
	DatasetStocks          = "stocks"
	DatasetREITs           = "reits"
	DatasetSmallCaps       = "smallcaps"
	DatasetResults         = "results"
	DatasetDividendSummary = "dividend_summary"
	DatasetOverview        = "overview"
	DatasetAllocation      = "allocation"
	DatasetGoal            = "goal"
)

// positionNumberFields are shared by the three holding worksheets.
var positionNumberFields = []string{
	"% Ideal", "Quantidade", "Total (R$)", "Cotação (R$)",
	"Preço Médio (R$)", "% Atual", "Meta (R$)", "Falta (R$)", "Sugestão",
}

// DefaultDatasets returns the wallet's standard dataset table. Worksheet
// titles can be overridden through configuration; everything else mirrors
// the spreadsheet layout.
func DefaultDatasets() []DatasetSpec {
	return []DatasetSpec{
		{
			Name:           DatasetTransactions,
			Worksheet:      "Lançamentos",
			DateField:      "Data Negócio",
			NumberFields:   []string{"Quantidade", "Preço (R$)", "Preço Total (R$)"},
			CategoryFields: []string{"Compra/Venda", "Tipo Ativo", "Ativo"},
			MaxAge:         6 * time.Hour,
		},
		{
			Name:           DatasetDividends,
			Worksheet:      "Proventos",
			DateField:      "Data",
			NumberFields:   []string{"Valor Líquido (R$)"},
			CategoryFields: []string{"Tipo Ativo", "Tipo Provento", "Ativo"},
			MaxAge:         6 * time.Hour,
		},
		{
			Name:           DatasetStocks,
			Worksheet:      "Ações",
			NumberFields:   positionNumberFields,
			CategoryFields: []string{"Ativo", "Setor"},
			DropLastRow:    true,
			MaxAge:         time.Hour,
		},
		{
			Name:           DatasetREITs,
			Worksheet:      "Fundos Imobiliários",
			NumberFields:   positionNumberFields,
			CategoryFields: []string{"Ativo", "Segmento"},
			DropLastRow:    true,
			MaxAge:         time.Hour,
		},
		{
			Name:           DatasetSmallCaps,
			Worksheet:      "Small Caps",
			NumberFields:   positionNumberFields,
			CategoryFields: []string{"Ativo", "Setor"},
			DropLastRow:    true,
			MaxAge:         time.Hour,
		},
		{
			Name:      DatasetResults,
			Worksheet: "Resultados",
			NumberFields: []string{
				"Quantidade", "Gasto (R$)", "Investido (R$)", "Vendido (R$)",
				"Cotação (R$)", "Preço Médio (R$)", "Ganho (R$)", "Proventos (R$)",
				"Ganho Ex (R$)", "Lucro Vendas (R$)", "Ganho (%)", "Ganho Ex (%)",
			},
			CategoryFields: []string{"Ativo", "Tipo Ativo", "Status"},
			MaxAge:         time.Hour,
		},
		{
			Name:      DatasetDividendSummary,
			Worksheet: "Proventos Consolidado",
			DateField: "Dia Final",
			NumberFields: []string{
				"Total (R$)", "Acumulado (R$)", "Total Investido (R$)", "DY - Carteira (%)",
			},
			DropLastRow: true,
			MaxAge:      6 * time.Hour,
		},
		{
			Name:      DatasetOverview,
			Worksheet: "Visão Geral",
			NumberFields: []string{
				"Gasto (R$)", "Investido (R$)", "Variação (%)", "Ganho Total (R$)",
				"Proventos (R$)", "Vendido (R$)", "Lucro Vendas (R$)",
			},
			Slice:  &GridSlice{HeaderRow: 0, DataStart: 1, DataEnd: 2, MaxCols: -1},
			MaxAge: time.Hour,
		},
		{
			Name:           DatasetAllocation,
			Worksheet:      "Visão Geral",
			NumberFields:   []string{"% Ideal", "% Atual", "Total (R$)"},
			CategoryFields: []string{"Classe", "Sugestão"},
			Slice:          &GridSlice{HeaderRow: 3, DataStart: 4, DataEnd: 7},
			MaxAge:         time.Hour,
		},
		{
			Name:         DatasetGoal,
			Worksheet:    "Visão Geral",
			NumberFields: []string{"Meta (R$)", "Valor Atual (R$)", "Progresso (%)"},
			Slice:        &GridSlice{HeaderRow: 8, DataStart: 9, DataEnd: 10, MaxCols: 3},
			MaxAge:       time.Hour,
		},
	}
}

// SpecsByName indexes dataset specs for lookup.
func SpecsByName(specs []DatasetSpec) map[string]DatasetSpec {
	out := make(map[string]DatasetSpec, len(specs))
	for _, s := range specs {
		out[s.Name] = s
	}
	return out
}

// Validate checks a spec is addressable.
func (s DatasetSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("dataset spec has no name")
	}
	if s.Worksheet == "" {
		return fmt.Errorf("dataset %s has no worksheet", s.Name)
	}
	if len(s.NumberFields) == 0 {
		return fmt.Errorf("dataset %s declares no numeric fields", s.Name)
	}
	return nil
}
