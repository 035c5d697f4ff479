package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used in files, URLs and reports
const DateLayout = "2006-01-02"

// Fund identifies an investment fund
type Fund struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Observation is one raw row of a fund's NAV history as reported by the source
type Observation struct {
	TradingDay        time.Time           `json:"trading_day"`
	UnitNAV           decimal.Decimal     `json:"unit_nav"`
	CumNAV            decimal.Decimal     `json:"cum_nav"`
	ReportedChangePct decimal.NullDecimal `json:"reported_change_pct"`
}

// RecordKey is the identity of a NAVRecord
type RecordKey struct {
	Code       string
	TradingDay time.Time
}

// NAVRecord is one fund's net asset value on one trading day.
// Records are immutable once stored.
type NAVRecord struct {
	Code              string              `json:"code"`
	Name              string              `json:"name"`
	TradingDay        time.Time           `json:"trading_day"`
	UnitNAV           decimal.Decimal     `json:"unit_nav"`
	CumNAV            decimal.Decimal     `json:"cum_nav"`
	ReportedChangePct decimal.NullDecimal `json:"reported_change_pct"`
}

// NewNAVRecord builds a record for fund f from a source observation
func NewNAVRecord(f Fund, o Observation) NAVRecord {
	return NAVRecord{
		Code:              f.Code,
		Name:              f.Name,
		TradingDay:        Day(o.TradingDay),
		UnitNAV:           o.UnitNAV,
		CumNAV:            o.CumNAV,
		ReportedChangePct: o.ReportedChangePct,
	}
}

// Key returns the record identity
func (r NAVRecord) Key() RecordKey {
	return RecordKey{Code: r.Code, TradingDay: Day(r.TradingDay)}
}

// Equal reports whether both records carry the same values.
// Decimals compare by value, so 1.005 equals 1.0050.
func (r NAVRecord) Equal(o NAVRecord) bool {
	if r.Code != o.Code || r.Name != o.Name || !Day(r.TradingDay).Equal(Day(o.TradingDay)) {
		return false
	}
	if !r.UnitNAV.Equal(o.UnitNAV) || !r.CumNAV.Equal(o.CumNAV) {
		return false
	}
	if r.ReportedChangePct.Valid != o.ReportedChangePct.Valid {
		return false
	}
	return !r.ReportedChangePct.Valid || r.ReportedChangePct.Decimal.Equal(o.ReportedChangePct.Decimal)
}

// Day truncates t to its calendar date at UTC midnight
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
