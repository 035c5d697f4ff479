// Package returns derives daily returns from a fund's stored NAV history.
package returns

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-metrics/internal/models"
)

// divisionPrecision is the number of decimal places kept when dividing
// cumulative NAVs.
const divisionPrecision = 16

// DataIntegrityError reports a NAV history that cannot yield a return series
type DataIntegrityError struct {
	Code       string
	TradingDay time.Time
	Reason     string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity failure for %s on %s: %s",
		e.Code, e.TradingDay.Format(models.DateLayout), e.Reason)
}

// Compute converts one fund's NAV records, ascending by trading day, into a
// daily return series of the same length. The first return is zero; every
// later one is measured on cumulative NAV against the previous stored day.
func Compute(records []models.NAVRecord) ([]models.ReturnRecord, error) {
	out := make([]models.ReturnRecord, 0, len(records))
	for i, rec := range records {
		r := models.ReturnRecord{
			Code:        rec.Code,
			TradingDay:  rec.TradingDay,
			DailyReturn: decimal.Zero,
			CumNAV:      rec.CumNAV,
		}
		if i > 0 {
			prev := records[i-1]
			if !prev.TradingDay.Before(rec.TradingDay) {
				return nil, &DataIntegrityError{Code: rec.Code, TradingDay: rec.TradingDay, Reason: "trading days not strictly ascending"}
			}
			if prev.CumNAV.IsZero() {
				return nil, &DataIntegrityError{Code: rec.Code, TradingDay: prev.TradingDay, Reason: "zero or missing cumulative NAV"}
			}
			r.DailyReturn = rec.CumNAV.Sub(prev.CumNAV).DivRound(prev.CumNAV, divisionPrecision)
		}
		out = append(out, r)
	}
	return out, nil
}

// Floats extracts the daily returns as float64 for statistics
func Floats(rets []models.ReturnRecord) []float64 {
	out := make([]float64, len(rets))
	for i, r := range rets {
		out[i] = r.DailyReturn.InexactFloat64()
	}
	return out
}
