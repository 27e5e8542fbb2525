package core

import (
	"fmt"
	"strings"
)

// Granularity is a calendar bucketing unit. Buckets of one granularity
// partition the timeline into non-overlapping, contiguous periods.
type Granularity string

const (
	Day      Granularity = "day"
	Month    Granularity = "month"
	Quarter  Granularity = "quarter"
	Semester Granularity = "semester"
	Year     Granularity = "year"
)

// Granularity menu thresholds, in unique months spanned by the data.
const (
	monthMaxUniqueMonths    = 24
	quarterMinUniqueMonths  = 6
	yearMinUniqueMonths     = 12
	semesterMinUniqueMonths = 24
)

// ParseGranularity maps user input to a Granularity. It accepts the
// canonical names, single-letter shorthands, and the Portuguese labels the
// spreadsheet pages use.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "d", "dia":
		return Day, nil
	case "month", "m", "mês", "mes":
		return Month, nil
	case "quarter", "q", "trimestre":
		return Quarter, nil
	case "semester", "s", "semestre":
		return Semester, nil
	case "year", "y", "ano":
		return Year, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

// Label returns the Portuguese display name used by the pages.
func (g Granularity) Label() string {
	switch g {
	case Day:
		return "Dia"
	case Month:
		return "Mês"
	case Quarter:
		return "Trimestre"
	case Semester:
		return "Semestre"
	case Year:
		return "Ano"
	}
	return string(g)
}

// Valid reports whether g is one of the known granularities.
func (g Granularity) Valid() bool {
	switch g {
	case Day, Month, Quarter, Semester, Year:
		return true
	}
	return false
}

// ValidGranularities returns the granularities worth offering for a set of
// record dates, in menu order; callers preselect the first. Short spans
// offer only months, quarters join from half a year of data, years from a
// full year, semesters from two years, and the month option drops off
// beyond two years. Unset dates do not count toward the span.
func ValidGranularities(dates []Date) ([]Granularity, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no dates to derive granularities from", ErrInvalidInput)
	}
	seen := make(map[YearMonth]struct{}, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		seen[d.YearMonth()] = struct{}{}
	}

	uniqueMonths := len(seen)
	var options []Granularity
	if uniqueMonths <= monthMaxUniqueMonths {
		options = append(options, Month)
	}
	if uniqueMonths >= quarterMinUniqueMonths {
		options = append(options, Quarter)
	}
	if uniqueMonths >= yearMinUniqueMonths {
		options = append(options, Year)
	}
	if uniqueMonths >= semesterMinUniqueMonths {
		options = append(options, Semester)
	}
	return options, nil
}

// PeriodStart truncates the date to the first day of its period.
func (d Date) PeriodStart(g Granularity) Date {
	switch g {
	case Day:
		return NewDate(d.Year(), d.Month(), d.Day())
	case Month:
		return NewDate(d.Year(), d.Month(), 1)
	case Quarter:
		return NewDate(d.Year(), (d.Quarter()-1)*3+1, 1)
	case Semester:
		return NewDate(d.Year(), (d.Semester()-1)*6+1, 1)
	case Year:
		return NewDate(d.Year(), 1, 1)
	}
	return d
}

// PeriodLabel formats the date's period as a sortable label: 2024-03-09,
// 2024-03, 2024-Q1, 2024-S1 or 2024. Labels of one granularity sort
// chronologically as strings.
func (d Date) PeriodLabel(g Granularity) string {
	switch g {
	case Day:
		return d.Format("2006-01-02")
	case Month:
		return d.Format("2006-01")
	case Quarter:
		return fmt.Sprintf("%04d-Q%d", d.Year(), d.Quarter())
	case Semester:
		return fmt.Sprintf("%04d-S%d", d.Year(), d.Semester())
	case Year:
		return fmt.Sprintf("%04d", d.Year())
	}
	return d.Format("2006-01-02")
}
