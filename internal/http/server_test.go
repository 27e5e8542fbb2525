package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/sheets/memory"
)

// newTestServer wires the server against the demo snapshot with logging
// discarded.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := memory.NewDemo()
	if err != nil {
		t.Fatalf("memory.NewDemo() error = %v", err)
	}
	svc := services.NewDatasetService(store, nil, time.Minute)
	logger := log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})

	srv := NewServer("127.0.0.1:0", svc, logger)
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return srv
}

func doGET(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func doPOST(t *testing.T, srv *Server, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeChart(t *testing.T, rec *httptest.ResponseRecorder) chartPayload {
	t.Helper()
	var payload chartPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding chart payload: %v (body %s)", err, rec.Body.String())
	}
	return payload
}

func findSeries(t *testing.T, p chartPayload, label string) chartDataset {
	t.Helper()
	for _, ds := range p.Datasets {
		if ds.Label == label {
			return ds
		}
	}
	labels := make([]string, 0, len(p.Datasets))
	for _, ds := range p.Datasets {
		labels = append(labels, ds.Label)
	}
	t.Fatalf("series %q not found, have %v", label, labels)
	return chartDataset{}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestPagesRender(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "dashboard",
			path: "/",
			want: []string{
				"Visão Geral · Carteira",
				"R$27.460,15", // spent
				"9,12%",       // variation
				"Aguardar",    // allocation suggestion
				"R$100.000,00",
				"28,54%",
				`<li class="reached">R$25.000,00</li>`,
				`<li class="pending">R$50.000,00</li>`,
				`class="active"`,
			},
		},
		{
			name: "transactions",
			path: "/lancamentos",
			want: []string{
				"Lançamentos · Carteira",
				"Total (R$)",
				`name="granularity"`,
				"Trimestre",
				"2023-06",
				"R$2.850,00",
				"12/06/2023",
				"PETR4",
			},
		},
		{
			name: "dividends",
			path: "/proventos",
			want: []string{
				"Proventos · Carteira",
				"/ui/proventos-consolidado",
				"Total (R$)",
				"14/07/2023",
				"Rendimento",
				"R$18,00",
			},
		},
		{
			name: "stocks",
			path: "/acoes",
			want: []string{
				"Ações · Carteira",
				"PETR4",
				"Petróleo e Gás",
				"R$7.761,00",
				"27,19%",
			},
		},
		{
			name: "reits",
			path: "/fundos-imobiliarios",
			want: []string{
				"Fundos Imobiliários · Carteira",
				"HGLG11",
				"Logística",
				"R$4.592,70",
			},
		},
		{
			name: "small caps",
			path: "/small-caps",
			want: []string{
				"Small Caps · Carteira",
				"KEPL3",
				"Bens Industriais",
				"R$1.687,00",
			},
		},
		{
			name: "simulations",
			path: "/simulacoes",
			want: []string{
				"Simulações · Carteira",
				"form-tempo",
				"form-taxa",
				`name="prazo_meses"`,
				`type="month"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGET(t, srv, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d, want %d", tt.path, rec.Code, http.StatusOK)
			}
			body := rec.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("GET %s body missing %q", tt.path, want)
				}
			}
		})
	}
}

func TestPositionsPagesDropTotalRow(t *testing.T) {
	srv := newTestServer(t)

	// The worksheet's closing Total row is presentation, not a holding.
	rec := doGET(t, srv, "/acoes")
	if strings.Contains(rec.Body.String(), "R$15.299,50") {
		t.Error("stocks page should not render the worksheet total row")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/nao-existe")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "Página não encontrada") {
		t.Errorf("body missing not-found message: %s", rec.Body.String())
	}
}

func TestPageMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := doPOST(t, srv, "/lancamentos", url.Values{})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /lancamentos status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET" {
		t.Errorf("Allow = %q, want %q", allow, "GET")
	}

	req := httptest.NewRequest(http.MethodPut, "/simulacoes", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /simulacoes status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if allow := rr.Header().Get("Allow"); allow != "GET, POST" {
		t.Errorf("Allow = %q, want %q", allow, "GET, POST")
	}
}

func TestPageRejectsUnknownGranularity(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/lancamentos?granularity=semanal")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), "semanal") {
		t.Errorf("body should name the rejected value: %s", rec.Body.String())
	}
}

func TestPartials(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "overview",
			path: "/ui/visao-geral",
			want: []string{"R$26.155,95", "R$570,60", "R$2.384,75"},
		},
		{
			name: "allocation",
			path: "/ui/alocacao",
			want: []string{"Ações", "40,00%", "53,61%", "R$9.461,20", "Comprar"},
		},
		{
			name: "milestones",
			path: "/ui/marcos",
			want: []string{"R$28.540,70", "28,54%", "width: 28.54", `<li class="reached">R$25.000,00</li>`},
		},
		{
			name: "transactions table default month",
			path: "/ui/lancamentos-tabela",
			want: []string{"2023-06", "Total (R$)", "R$2.850,00"},
		},
		{
			name: "transactions table by quarter",
			path: "/ui/lancamentos-tabela?granularity=quarter",
			want: []string{"2023-Q3", "Total (R$)"},
		},
		{
			name: "dividends table by year",
			path: "/ui/proventos-tabela?granularity=ano",
			want: []string{"2023", "FII", "Total (R$)"},
		},
		{
			name: "dividend summary",
			path: "/ui/proventos-consolidado",
			want: []string{"31/07/2023", "R$570,60", "0,28%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGET(t, srv, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d, want %d", tt.path, rec.Code, http.StatusOK)
			}
			body := rec.Body.String()
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("GET %s body missing %q", tt.path, want)
				}
			}
		})
	}
}

func TestPartialRejectsUnknownGranularity(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/ui/proventos-tabela?granularity=weekly")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestTransactionsChartPurchasesByYear(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/chart/lancamentos?side=C&granularity=year")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	payload := decodeChart(t, rec)

	if len(payload.Labels) != 2 || payload.Labels[0] != "2023" || payload.Labels[1] != "2024" {
		t.Fatalf("labels = %v, want [2023 2024]", payload.Labels)
	}
	if len(payload.Datasets) != 3 {
		t.Fatalf("datasets = %d, want 3", len(payload.Datasets))
	}

	stocks := findSeries(t, payload, "Ação")
	if !approx(stocks.Data[0], 8485.00) {
		t.Errorf("Ação 2023 = %v, want 8485.00", stocks.Data[0])
	}
	if !approx(stocks.Data[1], 5594.25) {
		t.Errorf("Ação 2024 = %v, want 5594.25", stocks.Data[1])
	}

	reits := findSeries(t, payload, "FII")
	if !approx(reits.Data[0], 5087.10) {
		t.Errorf("FII 2023 = %v, want 5087.10", reits.Data[0])
	}

	// Small caps only start in 2024; the 2023 slot is zero-filled.
	small := findSeries(t, payload, "Small Cap")
	if small.Data[0] != 0 {
		t.Errorf("Small Cap 2023 = %v, want 0", small.Data[0])
	}
	if !approx(small.Data[1], 3427.00) {
		t.Errorf("Small Cap 2024 = %v, want 3427.00", small.Data[1])
	}
}

func TestTransactionsChartSalesByYear(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/chart/lancamentos?side=V&granularity=year")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	payload := decodeChart(t, rec)

	stocks := findSeries(t, payload, "Ação")
	if !approx(stocks.Data[0], 754.00) || stocks.Data[1] != 0 {
		t.Errorf("Ação sales = %v, want [754 0]", stocks.Data)
	}
	reits := findSeries(t, payload, "FII")
	if reits.Data[0] != 0 || !approx(reits.Data[1], 604.00) {
		t.Errorf("FII sales = %v, want [0 604]", reits.Data)
	}
}

func TestTransactionsChartRejectsBadSide(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/chart/lancamentos?side=X")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("error body missing message")
	}
}

func TestDividendsChartByYear(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/chart/proventos?granularity=ano")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	payload := decodeChart(t, rec)

	stocks := findSeries(t, payload, "Ação")
	if !approx(stocks.Data[0], 123.70) || !approx(stocks.Data[1], 191.85) {
		t.Errorf("Ação dividends = %v, want [123.70 191.85]", stocks.Data)
	}
	reits := findSeries(t, payload, "FII")
	if !approx(reits.Data[0], 98.55) || !approx(reits.Data[1], 156.50) {
		t.Errorf("FII dividends = %v, want [98.55 156.50]", reits.Data)
	}
}

func TestDividendsAccumulatedChart(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/chart/proventos-acumulado?granularity=ano")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	payload := decodeChart(t, rec)

	if len(payload.Datasets) != 1 {
		t.Fatalf("datasets = %d, want 1", len(payload.Datasets))
	}
	series := payload.Datasets[0]
	if series.Label != "Acumulado (R$)" {
		t.Errorf("label = %q, want %q", series.Label, "Acumulado (R$)")
	}
	if !approx(series.Data[0], 222.25) {
		t.Errorf("accumulated 2023 = %v, want 222.25", series.Data[0])
	}
	if !approx(series.Data[1], 570.60) {
		t.Errorf("accumulated 2024 = %v, want 570.60", series.Data[1])
	}
}

func TestAllocationChart(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/chart/alocacao")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	payload := decodeChart(t, rec)

	wantLabels := []string{"Ações", "Fundos Imobiliários", "Small Caps"}
	if len(payload.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v, want %v", payload.Labels, wantLabels)
	}
	for i, want := range wantLabels {
		if payload.Labels[i] != want {
			t.Errorf("label[%d] = %q, want %q", i, payload.Labels[i], want)
		}
	}
	data := payload.Datasets[0].Data
	if !approx(data[0], 15299.50) || !approx(data[1], 9461.20) || !approx(data[2], 3780.00) {
		t.Errorf("data = %v, want [15299.50 9461.20 3780.00]", data)
	}
}

func TestPositionsChart(t *testing.T) {
	srv := newTestServer(t)

	t.Run("stocks by sector", func(t *testing.T) {
		rec := doGET(t, srv, "/chart/posicoes?dataset=acoes&por=setor")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		payload := decodeChart(t, rec)

		wantLabels := []string{"Bancos", "Mineração", "Petróleo e Gás"}
		if len(payload.Labels) != len(wantLabels) {
			t.Fatalf("labels = %v, want %v", payload.Labels, wantLabels)
		}
		for i, want := range wantLabels {
			if payload.Labels[i] != want {
				t.Errorf("label[%d] = %q, want %q", i, payload.Labels[i], want)
			}
		}
		data := payload.Datasets[0].Data
		if !approx(data[0], 6313.50) || !approx(data[1], 1225.00) || !approx(data[2], 7761.00) {
			t.Errorf("data = %v, want [6313.50 1225.00 7761.00]", data)
		}
	})

	t.Run("stocks by asset is the default", func(t *testing.T) {
		rec := doGET(t, srv, "/chart/posicoes?dataset=acoes")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		payload := decodeChart(t, rec)

		wantLabels := []string{"BBAS3", "ITUB4", "PETR4", "VALE3"}
		if len(payload.Labels) != len(wantLabels) {
			t.Fatalf("labels = %v, want %v", payload.Labels, wantLabels)
		}
		for i, want := range wantLabels {
			if payload.Labels[i] != want {
				t.Errorf("label[%d] = %q, want %q", i, payload.Labels[i], want)
			}
		}
	})

	t.Run("unknown dataset", func(t *testing.T) {
		rec := doGET(t, srv, "/chart/posicoes?dataset=cripto")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("unknown grouping", func(t *testing.T) {
		rec := doGET(t, srv, "/chart/posicoes?dataset=acoes&por=pais")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}
	})
}

func TestChartCacheReuse(t *testing.T) {
	srv := newTestServer(t)

	first := doGET(t, srv, "/chart/alocacao")
	second := doGET(t, srv, "/chart/alocacao")

	if first.Body.String() != second.Body.String() {
		t.Error("cached payload differs from the built one")
	}
	if misses := atomic.LoadInt64(&srv.chartMisses); misses != 1 {
		t.Errorf("chart misses = %d, want 1", misses)
	}
	if hits := atomic.LoadInt64(&srv.chartHits); hits != 1 {
		t.Errorf("chart hits = %d, want 1", hits)
	}
}

func TestSimulationProjection(t *testing.T) {
	srv := newTestServer(t)

	rec := doPOST(t, srv, "/simulacoes", url.Values{
		"modo":          {"tempo"},
		"valor_inicial": {"1.000,00"},
		"aporte_mensal": {"500,00"},
		"meta":          {"10.000,00"},
		"taxa_mensal":   {"0,5"},
		"inicio":        {"2025-01"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	for _, want := range []string{
		"Meta alcançada em",
		"1 anos e 5 meses",
		"(17 meses)",
		"2026-06",
		"R$10.000,00", // no inflation, goal unchanged
		"grafico-trajetoria",
		"trajetoria-data",
		`name="granularity"`,
		"Patrimônio (R$)",
		"R$1.505,00", // first month's closing balance
		"0,50%",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	trigger := rec.Header().Get("HX-Trigger")
	for _, want := range []string{`"simulation:done"`, `"mode":"tempo"`, `"show-notification"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %s: %s", want, trigger)
		}
	}
}

func TestSimulationProjectionReaggregated(t *testing.T) {
	srv := newTestServer(t)

	// A long horizon drops the month option, so the trajectory renders
	// re-aggregated with period closing values.
	rec := doPOST(t, srv, "/simulacoes", url.Values{
		"modo":          {"tempo"},
		"valor_inicial": {"1.000,00"},
		"aporte_mensal": {"1.000,00"},
		"meta":          {"1.000.000,00"},
		"taxa_mensal":   {"0,8"},
		"inicio":        {"2025-01"},
		"granularity":   {"ano"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	for _, want := range []string{"Período", "2030", "Retorno Mensal (%)", "0,80%"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, ">Mês<") {
		t.Error("month option should not be offered beyond two years of trajectory")
	}
}

func TestSimulationAlreadyReached(t *testing.T) {
	srv := newTestServer(t)

	rec := doPOST(t, srv, "/simulacoes", url.Values{
		"modo":          {"tempo"},
		"valor_inicial": {"20.000,00"},
		"meta":          {"10.000,00"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Meta já alcançada") {
		t.Errorf("body missing already-reached message: %s", rec.Body.String())
	}
}

func TestSimulationUnreachableGoal(t *testing.T) {
	srv := newTestServer(t)

	// No balance, no contribution, no rate: the goal never arrives.
	rec := doPOST(t, srv, "/simulacoes", url.Values{
		"modo": {"tempo"},
		"meta": {"10.000,00"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), "Meta inalcançável") {
		t.Errorf("body missing guidance: %s", rec.Body.String())
	}
}

func TestSimulationValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "missing goal",
			form: url.Values{"modo": {"tempo"}, "aporte_mensal": {"100,00"}},
			want: "preencha o campo meta",
		},
		{
			name: "invalid rate",
			form: url.Values{"modo": {"tempo"}, "meta": {"1.000,00"}, "taxa_mensal": {"abc"}},
			want: "percentual",
		},
		{
			name: "unknown mode",
			form: url.Values{"modo": {"loteria"}, "meta": {"1.000,00"}},
			want: "Modo de simulação inválido",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doPOST(t, srv, "/simulacoes", tt.form)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q: %s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestRateSolve(t *testing.T) {
	srv := newTestServer(t)

	rec := doPOST(t, srv, "/simulacoes", url.Values{
		"modo":          {"taxa"},
		"valor_inicial": {"10.000,00"},
		"meta":          {"20.000,00"},
		"prazo_meses":   {"120"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	for _, want := range []string{"Taxa necessária", "ao mês", "ao ano", "10 anos e 0 meses", "Patrimônio final"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	trigger := rec.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"mode":"taxa"`) {
		t.Errorf("HX-Trigger missing taxa mode: %s", trigger)
	}
}

func TestRateSolveNoSolution(t *testing.T) {
	srv := newTestServer(t)

	rec := doPOST(t, srv, "/simulacoes", url.Values{
		"modo":        {"taxa"},
		"meta":        {"1.000.000,00"},
		"prazo_meses": {"12"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), "Nenhuma taxa mensal") {
		t.Errorf("body missing guidance: %s", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz body = %s", rec.Body.String())
	}

	rec = doGET(t, srv, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Errorf("readyz body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	doPOST(t, srv, "/simulacoes", url.Values{
		"modo":          {"tempo"},
		"valor_inicial": {"20.000,00"},
		"meta":          {"10.000,00"},
	})

	rec := doGET(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "version=0.0.4") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE carteira_http_requests_total counter",
		"carteira_simulations_total 1",
		"carteira_uptime_seconds",
		"carteira_rate_limit_active_clients",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/healthz")
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "script-src") {
		t.Errorf("CSP = %q", csp)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t)

	rec := doGET(t, srv, "/static/app.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestRateLimitOnFormSubmissions(t *testing.T) {
	srv := newTestServer(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		last = doPOST(t, srv, "/simulacoes", url.Values{"modo": {"loteria"}})
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("61st POST status = %d, want %d", last.Code, http.StatusTooManyRequests)
	}
	if retry := last.Header().Get("Retry-After"); retry != "60" {
		t.Errorf("Retry-After = %q, want %q", retry, "60")
	}

	// Read-only traffic stays unmetered.
	rec := doGET(t, srv, "/simulacoes")
	if rec.Code != http.StatusOK {
		t.Errorf("GET after limit status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
