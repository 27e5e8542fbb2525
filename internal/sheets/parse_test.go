package sheets

import (
	"math"
	"testing"
	"time"

	"carteira/internal/core"
)

func TestParseNumberString(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"R$ 1.234,56", 1234.56},
		{"R$1.234,56", 1234.56},
		{"1.234.567,89", 1234567.89},
		{"0,77", 0.77},
		{"-R$ 50,00", -50},
		{"1234.56", 1234.56},
		{"1,234,567", 1234567},
		{"12,5%", 12.5},
		{"0.125", 0.125},
		{"42", 42},
	}
	for i, c := range cases {
		got := parseNumberString(c.in)
		if got != c.want {
			t.Fatalf("case %d: parseNumberString(%q) = %v, want %v", i, c.in, got, c.want)
		}
	}

	for i, in := range []string{"", "-", "abc", "R$ ", "12,3,4.5.6"} {
		if got := parseNumberString(in); !math.IsNaN(got) {
			t.Fatalf("case %d: parseNumberString(%q) = %v, want NaN", i, in, got)
		}
	}
}

func TestParseNumberCellTypes(t *testing.T) {
	if got := parseNumber(float64(9.5)); got != 9.5 {
		t.Fatalf("float64 cell = %v, want 9.5", got)
	}
	if got := parseNumber(7); got != 7 {
		t.Fatalf("int cell = %v, want 7", got)
	}
	if got := parseNumber(nil); !math.IsNaN(got) {
		t.Fatalf("nil cell = %v, want NaN", got)
	}
	if got := parseNumber(true); !math.IsNaN(got) {
		t.Fatalf("bool cell = %v, want NaN", got)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want core.Date
	}{
		{"2024-03-15", core.NewDate(2024, 3, 15)},
		{"2024-03-15T00:00:00", core.NewDate(2024, 3, 15)},
		{"15/03/2024", core.NewDate(2024, 3, 15)},
		{"5/3/2024", core.NewDate(2024, 3, 5)},
		{" 2024-03-15 ", core.NewDate(2024, 3, 15)},
	}
	for i, c := range cases {
		got := parseDate(c.in)
		if !got.Equal(c.want.Time) {
			t.Fatalf("case %d: parseDate(%q) = %v, want %v", i, c.in, got, c.want)
		}
	}

	for i, in := range []any{"", "not a date", "2024-13-01", 42.0, nil} {
		if got := parseDate(in); !got.IsZero() {
			t.Fatalf("case %d: parseDate(%v) = %v, want zero", i, in, got)
		}
	}
}

func TestParseGridTransactions(t *testing.T) {
	spec := DatasetSpec{
		Name:           "transactions",
		Worksheet:      "Lançamentos",
		DateField:      "Data Negócio",
		NumberFields:   []string{"Quantidade", "Preço Total (R$)"},
		CategoryFields: []string{"Compra/Venda", "Ativo"},
	}
	grid := [][]any{
		{"Data Negócio", "Compra/Venda", "Ativo", "Quantidade", "Preço Total (R$)"},
		{"2024-01-10", "C", " PETR4 ", "10", "R$ 350,50"},
		{"2024-02-05", "V", "HGLG11", "2", "R$ 330,00"},
		{"", "C", "BBAS3", "5", "sem preço"},
	}
	fetched := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	ds, err := ParseGrid(grid, spec, fetched)
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if !ds.FetchedAt.Equal(fetched) {
		t.Fatalf("FetchedAt = %v, want %v", ds.FetchedAt, fetched)
	}
	wantCols := []string{"Data Negócio", "Compra/Venda", "Ativo", "Quantidade", "Preço Total (R$)", "Mês"}
	if len(ds.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", ds.Columns, wantCols)
	}
	for i, col := range wantCols {
		if ds.Columns[i] != col {
			t.Fatalf("column %d = %q, want %q", i, ds.Columns[i], col)
		}
	}
	if ds.Len() != 3 {
		t.Fatalf("rows = %d, want 3", ds.Len())
	}

	first := ds.Rows[0]
	if got := first.DateField("Data Negócio"); !got.Equal(core.NewDate(2024, 1, 10).Time) {
		t.Fatalf("row 0 date = %v", got)
	}
	if got := first.TextField("Ativo"); got != "PETR4" {
		t.Fatalf("row 0 ativo = %q, want trimmed PETR4", got)
	}
	if got := first.NumberField("Preço Total (R$)"); got != 350.50 {
		t.Fatalf("row 0 total = %v, want 350.50", got)
	}
	if got := first.TextField("Mês"); got != "2024-01" {
		t.Fatalf("row 0 month = %q, want 2024-01", got)
	}

	undated := ds.Rows[2]
	if !undated.DateField("Data Negócio").IsZero() {
		t.Fatalf("row 2 date should be zero")
	}
	if got := undated.TextField("Mês"); got != "" {
		t.Fatalf("row 2 month = %q, want empty", got)
	}
	if got := undated.NumberField("Preço Total (R$)"); !math.IsNaN(got) {
		t.Fatalf("row 2 total = %v, want NaN", got)
	}

	if ds.Kind("Data Negócio") != core.KindDate || ds.Kind("Quantidade") != core.KindNumber || ds.Kind("Ativo") != core.KindText {
		t.Fatalf("kind map wrong: %v", ds.Kinds)
	}
}

func TestParseGridKeepsExistingMonthColumn(t *testing.T) {
	spec := DatasetSpec{
		Name:         "dividend_summary",
		Worksheet:    "Proventos Consolidado",
		DateField:    "Dia Final",
		NumberFields: []string{"Total (R$)"},
	}
	grid := [][]any{
		{"Mês", "Dia Final", "Total (R$)"},
		{"2024-01", "2024-01-31", "R$ 120,00"},
	}
	ds, err := ParseGrid(grid, spec, time.Now())
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if len(ds.Columns) != 3 {
		t.Fatalf("columns = %v, want no derived month", ds.Columns)
	}
	if got := ds.Rows[0].TextField("Mês"); got != "2024-01" {
		t.Fatalf("month = %q", got)
	}
}

func TestParseGridDropLastRow(t *testing.T) {
	spec := DatasetSpec{
		Name:         "stocks",
		Worksheet:    "Ações",
		NumberFields: []string{"Total (R$)"},
		DropLastRow:  true,
	}
	grid := [][]any{
		{"Ativo", "Total (R$)"},
		{"PETR4", "R$ 1.000,00"},
		{"VALE3", "R$ 2.000,00"},
		{"Total", "R$ 3.000,00"},
	}
	ds, err := ParseGrid(grid, spec, time.Now())
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d, want totals row dropped", ds.Len())
	}
	for i, r := range ds.Rows {
		if r.TextField("Ativo") == "Total" {
			t.Fatalf("row %d still holds the totals line", i)
		}
	}
}

func TestParseGridSkipsEmptyRows(t *testing.T) {
	spec := DatasetSpec{
		Name:         "dividends",
		Worksheet:    "Proventos",
		NumberFields: []string{"Valor Líquido (R$)"},
	}
	grid := [][]any{
		{"Ativo", "Valor Líquido (R$)"},
		{"PETR4", "10,00"},
		{"", ""},
		{},
		{"VALE3", "20,00"},
	}
	ds, err := ParseGrid(grid, spec, time.Now())
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d, want 2", ds.Len())
	}
}

func TestParseGridMissingColumn(t *testing.T) {
	spec := DatasetSpec{
		Name:         "dividends",
		Worksheet:    "Proventos",
		NumberFields: []string{"Valor Líquido (R$)"},
	}
	grid := [][]any{
		{"Ativo", "Valor Bruto (R$)"},
		{"PETR4", "10,00"},
	}
	if _, err := ParseGrid(grid, spec, time.Now()); err == nil {
		t.Fatalf("expected error for missing declared column")
	}

	spec.NumberFields = []string{"Valor Bruto (R$)"}
	spec.DateField = "Data"
	if _, err := ParseGrid(grid, spec, time.Now()); err == nil {
		t.Fatalf("expected error for missing date column")
	}
}

// generalGrid mimics the wallet's general worksheet, which stacks the
// overview, allocation and goal tables in a single sheet.
func generalGrid() [][]any {
	return [][]any{
		{"Gasto (R$)", "Investido (R$)", "Variação (%)", "Ganho Total (R$)", "Proventos (R$)", "Vendido (R$)", "Lucro Vendas (R$)", "Atualizado"},
		{"R$ 10.000,00", "R$ 12.500,00", "0,25", "R$ 2.500,00", "R$ 350,00", "R$ 1.000,00", "R$ 150,00", "2024-06-01"},
		{},
		{"Classe", "% Ideal", "% Atual", "Total (R$)", "Sugestão"},
		{"Ações", "0,40", "0,35", "R$ 4.375,00", "Comprar"},
		{"Fundos Imobiliários", "0,40", "0,45", "R$ 5.625,00", "Aguardar"},
		{"Small Caps", "0,20", "0,20", "R$ 2.500,00", "Aguardar"},
		{},
		{"Meta (R$)", "Valor Atual (R$)", "Progresso (%)", "Notas"},
		{"R$ 100.000,00", "R$ 12.500,00", "0,125", "ignorar"},
	}
}

func TestParseGridOverviewSlice(t *testing.T) {
	specs := SpecsByName(DefaultDatasets())
	ds, err := ParseGrid(generalGrid(), specs[DatasetOverview], time.Now())
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if len(ds.Columns) != 7 {
		t.Fatalf("columns = %v, want the trailing column dropped", ds.Columns)
	}
	if ds.Len() != 1 {
		t.Fatalf("rows = %d, want 1", ds.Len())
	}
	row := ds.Rows[0]
	if got := row.NumberField("Gasto (R$)"); got != 10000 {
		t.Fatalf("gasto = %v", got)
	}
	if got := row.NumberField("Variação (%)"); got != 0.25 {
		t.Fatalf("variação = %v", got)
	}
	if row.Has("Atualizado") {
		t.Fatalf("trailing column leaked into the overview")
	}
}

func TestParseGridAllocationSlice(t *testing.T) {
	specs := SpecsByName(DefaultDatasets())
	ds, err := ParseGrid(generalGrid(), specs[DatasetAllocation], time.Now())
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("rows = %d, want 3 classes", ds.Len())
	}
	first := ds.Rows[0]
	if got := first.TextField("Classe"); got != "Ações" {
		t.Fatalf("classe = %q", got)
	}
	if got := first.NumberField("% Ideal"); got != 0.40 {
		t.Fatalf("%% ideal = %v", got)
	}
	if got := first.TextField("Sugestão"); got != "Comprar" {
		t.Fatalf("sugestão = %q", got)
	}
}

func TestParseGridGoalSlice(t *testing.T) {
	specs := SpecsByName(DefaultDatasets())
	ds, err := ParseGrid(generalGrid(), specs[DatasetGoal], time.Now())
	if err != nil {
		t.Fatalf("ParseGrid: %v", err)
	}
	if len(ds.Columns) != 3 {
		t.Fatalf("columns = %v, want first three only", ds.Columns)
	}
	if ds.Len() != 1 {
		t.Fatalf("rows = %d, want 1", ds.Len())
	}
	row := ds.Rows[0]
	if got := row.NumberField("Meta (R$)"); got != 100000 {
		t.Fatalf("meta = %v", got)
	}
	if got := row.NumberField("Progresso (%)"); got != 0.125 {
		t.Fatalf("progresso = %v", got)
	}
	if row.Has("Notas") {
		t.Fatalf("extra column leaked into the goal table")
	}
}

func TestDefaultDatasetsAreValid(t *testing.T) {
	specs := DefaultDatasets()
	if len(specs) != 10 {
		t.Fatalf("datasets = %d, want 10", len(specs))
	}
	seen := map[string]bool{}
	for i, s := range specs {
		if err := s.Validate(); err != nil {
			t.Fatalf("spec %d: %v", i, err)
		}
		if seen[s.Name] {
			t.Fatalf("spec %d: duplicate name %s", i, s.Name)
		}
		seen[s.Name] = true
	}
	for _, name := range []string{
		DatasetTransactions, DatasetDividends, DatasetStocks, DatasetREITs,
		DatasetSmallCaps, DatasetResults, DatasetDividendSummary,
		DatasetOverview, DatasetAllocation, DatasetGoal,
	} {
		if !seen[name] {
			t.Fatalf("missing dataset %s", name)
		}
	}
}
