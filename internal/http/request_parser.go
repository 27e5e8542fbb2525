package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carteira/internal/core"
)

// parseGranularityParam reads the granularity parameter. An absent value
// selects the first offered option, matching the selector's preselection;
// an unrecognized one fails with the core sentinel so callers answer 422.
func parseGranularityParam(values url.Values, offered []core.Granularity) (core.Granularity, error) {
	raw := strings.TrimSpace(values.Get("granularity"))
	if raw == "" {
		if len(offered) > 0 {
			return offered[0], nil
		}
		return core.Month, nil
	}
	return core.ParseGranularity(raw)
}

// parseAmountField parses a BRL form amount ("1.234,56", "R$ 500"). Empty
// and explicit zero are fine for optional fields; required fields must
// carry a positive value.
func parseAmountField(form url.Values, field string, required bool) (float64, error) {
	raw := sanitizeInput(form.Get(field))
	if raw == "" {
		if required {
			return 0, fmt.Errorf("%w: preencha o campo %s", core.ErrInvalidInput, field)
		}
		return 0, nil
	}
	cents, err := core.ParseDecimalToCents(raw)
	if err != nil {
		if !required && isZeroAmount(raw) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: valor %q no campo %s", core.ErrInvalidInput, raw, field)
	}
	return core.CentsToAmount(cents), nil
}

// isZeroAmount recognizes explicit zero entries like "0" and "0,00".
func isZeroAmount(s string) bool {
	seenZero := false
	for _, r := range s {
		switch r {
		case '0':
			seenZero = true
		case '.', ',':
		default:
			return false
		}
	}
	return seenZero
}

// parsePercentField parses a percentage input ("0,77" meaning 0.77%) into
// a decimal rate. Empty means zero; range checks stay with the engine.
func parsePercentField(form url.Values, field string) (float64, error) {
	raw := sanitizeInput(form.Get(field))
	if raw == "" {
		return 0, nil
	}
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: percentual %q no campo %s", core.ErrInvalidInput, raw, field)
	}
	return v / 100, nil
}

// parseMonthsField parses a horizon in whole months.
func parseMonthsField(form url.Values, field string) (int, error) {
	raw := sanitizeInput(form.Get(field))
	if raw == "" {
		return 0, fmt.Errorf("%w: informe o prazo em meses", core.ErrInvalidInput)
	}
	months, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: prazo %q", core.ErrInvalidInput, raw)
	}
	return months, nil
}

// parseStartPeriod reads the optional simulation start month ("2025-09"),
// defaulting to the current month.
func parseStartPeriod(form url.Values) (core.YearMonth, error) {
	raw := sanitizeInput(form.Get("inicio"))
	if raw == "" {
		now := time.Now()
		return core.YearMonth{Year: now.Year(), Month: now.Month()}, nil
	}
	return core.ParseYearMonth(raw)
}

// parseSimulationForm builds the time-to-goal input from the form.
func parseSimulationForm(form url.Values) (core.SimulationInput, error) {
	var in core.SimulationInput
	var err error
	if in.InitialBalance, err = parseAmountField(form, "valor_inicial", false); err != nil {
		return in, err
	}
	if in.MonthlyContribution, err = parseAmountField(form, "aporte_mensal", false); err != nil {
		return in, err
	}
	if in.Goal, err = parseAmountField(form, "meta", true); err != nil {
		return in, err
	}
	if in.MonthlyRate, err = parsePercentField(form, "taxa_mensal"); err != nil {
		return in, err
	}
	if in.AnnualInflation, err = parsePercentField(form, "inflacao_anual"); err != nil {
		return in, err
	}
	if in.AnnualContributionGrowth, err = parsePercentField(form, "crescimento_aporte"); err != nil {
		return in, err
	}
	in.Start, err = parseStartPeriod(form)
	return in, err
}

// parseRateForm builds the required-rate input from the form. It shares the
// amount fields with the time-to-goal form; the rate gives way to a fixed
// horizon.
func parseRateForm(form url.Values) (core.RateSolveInput, error) {
	var in core.RateSolveInput
	var err error
	if in.InitialBalance, err = parseAmountField(form, "valor_inicial", false); err != nil {
		return in, err
	}
	if in.MonthlyContribution, err = parseAmountField(form, "aporte_mensal", false); err != nil {
		return in, err
	}
	if in.Goal, err = parseAmountField(form, "meta", true); err != nil {
		return in, err
	}
	if in.AnnualInflation, err = parsePercentField(form, "inflacao_anual"); err != nil {
		return in, err
	}
	if in.AnnualContributionGrowth, err = parsePercentField(form, "crescimento_aporte"); err != nil {
		return in, err
	}
	in.Months, err = parseMonthsField(form, "prazo_meses")
	return in, err
}

// RequireMethod checks the request method against the allowed ones,
// returning an error response builder on mismatch.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET guards read-only handlers.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet)
}

// ParseFormOrFail parses the request form, returning an error response on
// failure and nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Formato de requisição inválido")
	}
	return nil
}
