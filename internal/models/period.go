package models

import (
	"fmt"
	"time"
)

// Granularity selects which periods a report covers
type Granularity string

// Granularity constants
const (
	GranularityAnnual  Granularity = "annual"
	GranularityMonthly Granularity = "monthly"
)

// ParseGranularity validates a granularity name
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityAnnual, GranularityMonthly:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown granularity: %q", s)
}

// PeriodKind is the shape of an aggregation window
type PeriodKind int

// Period kinds
const (
	PeriodTotal PeriodKind = iota
	PeriodYear
	PeriodMonth
)

// PeriodKey identifies an aggregation window: Total, Year(y) or Month(y, m)
type PeriodKey struct {
	Kind  PeriodKind
	Year  int
	Month time.Month
}

// Total is the whole-history period
func Total() PeriodKey { return PeriodKey{Kind: PeriodTotal} }

// Year is the calendar year y
func Year(y int) PeriodKey { return PeriodKey{Kind: PeriodYear, Year: y} }

// Month is calendar month m of year y
func Month(y int, m time.Month) PeriodKey { return PeriodKey{Kind: PeriodMonth, Year: y, Month: m} }

// Contains reports whether day falls inside the period
func (k PeriodKey) Contains(day time.Time) bool {
	switch k.Kind {
	case PeriodYear:
		return day.Year() == k.Year
	case PeriodMonth:
		return day.Year() == k.Year && day.Month() == k.Month
	}
	return true
}

func (k PeriodKey) String() string {
	switch k.Kind {
	case PeriodYear:
		return fmt.Sprintf("%04d", k.Year)
	case PeriodMonth:
		return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
	}
	return "total"
}

// MarshalText renders the key as its String form
func (k PeriodKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
