package core

import (
	"fmt"
	"time"
)

type (
	// Date is a calendar day. The zero value means "no date".
	Date struct {
		time.Time
	}

	// YearMonth identifies a calendar month, the unit simulations advance
	// by.
	YearMonth struct {
		Year  int
		Month time.Month
	}
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Quarter returns the quarter 1-4.
func (d Date) Quarter() int {
	return (d.Month()-1)/3 + 1
}

// Semester returns the semester 1-2.
func (d Date) Semester() int {
	return (d.Month()-1)/6 + 1
}

// YearMonth returns the calendar month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Time.Month()}
}

// ParseYearMonth parses a "2006-01" period string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: start period %q", ErrInvalidInput, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// String formats the period as "2006-01".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// AddMonths advances the period by n months, carrying years.
func (ym YearMonth) AddMonths(n int) YearMonth {
	m := int(ym.Month) - 1 + n
	y := ym.Year + m/12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	return YearMonth{Year: y, Month: time.Month(m + 1)}
}

// Date returns the first day of the month.
func (ym YearMonth) Date() Date {
	return NewDate(ym.Year, int(ym.Month), 1)
}

// IsZero reports whether the period is unset.
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// Before reports whether ym precedes other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}
