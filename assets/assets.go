package assets

import (
	"embed"
	"encoding/csv"
	"fmt"
)

// demoFS embeds sample worksheet exports so the app can run without a
// spreadsheet (memory backend, demos, tests).
//
//go:embed demo/*.csv
var demoFS embed.FS

// worksheetFiles maps worksheet titles to their embedded CSV exports. The
// titles match the wallet spreadsheet's tab names.
var worksheetFiles = map[string]string{
	"Lançamentos":           "demo/lancamentos.csv",
	"Proventos":             "demo/proventos.csv",
	"Ações":                 "demo/acoes.csv",
	"Fundos Imobiliários":   "demo/fundos_imobiliarios.csv",
	"Small Caps":            "demo/small_caps.csv",
	"Resultados":            "demo/resultados.csv",
	"Proventos Consolidado": "demo/proventos_consolidado.csv",
	"Visão Geral":           "demo/visao_geral.csv",
}

// DemoWorksheets loads every embedded worksheet as a raw value grid, the
// same shape the Sheets API returns.
func DemoWorksheets() (map[string][][]any, error) {
	out := make(map[string][][]any, len(worksheetFiles))
	for title, path := range worksheetFiles {
		grid, err := readGrid(path)
		if err != nil {
			return nil, fmt.Errorf("demo worksheet %s: %w", title, err)
		}
		out[title] = grid
	}
	return out, nil
}

func readGrid(path string) ([][]any, error) {
	f, err := demoFS.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	grid := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		grid[i] = cells
	}
	return grid, nil
}
