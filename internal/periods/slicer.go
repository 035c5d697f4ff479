// Package periods partitions a fund's dated return series into calendar
// windows. Slices are views over the full series: the first return of a
// window keeps its real value and is never reset to zero.
package periods

import (
	"github.com/trogers1052/fund-metrics/internal/models"
)

// Window is one period of a fund's return series
type Window struct {
	Key     models.PeriodKey
	Returns []models.ReturnRecord
}

// Slice returns the maximal contiguous run of rets falling inside key.
// rets must be ascending by trading day.
func Slice(rets []models.ReturnRecord, key models.PeriodKey) []models.ReturnRecord {
	if key.Kind == models.PeriodTotal {
		return rets
	}
	start := -1
	for i, r := range rets {
		in := key.Contains(r.TradingDay)
		if in && start < 0 {
			start = i
		}
		if !in && start >= 0 {
			return rets[start:i]
		}
	}
	if start < 0 {
		return nil
	}
	return rets[start:]
}

// Keys lists the periods of the given granularity that hold at least one
// trading day, in chronological order. Annual keys start with Total.
func Keys(rets []models.ReturnRecord, g models.Granularity) []models.PeriodKey {
	windows := Partition(rets, g)
	keys := make([]models.PeriodKey, len(windows))
	for i, w := range windows {
		keys[i] = w.Key
	}
	return keys
}

// Partition splits rets into the windows of granularity g in one pass.
// Annual partitions are preceded by the Total window. Periods without
// trading days produce no window.
func Partition(rets []models.ReturnRecord, g models.Granularity) []Window {
	if len(rets) == 0 {
		return nil
	}
	var windows []Window
	keyOf := monthKey
	if g == models.GranularityAnnual {
		windows = append(windows, Window{Key: models.Total(), Returns: rets})
		keyOf = yearKey
	}

	start := 0
	for i := 1; i <= len(rets); i++ {
		if i < len(rets) && keyOf(rets[i]) == keyOf(rets[start]) {
			continue
		}
		windows = append(windows, Window{Key: keyOf(rets[start]), Returns: rets[start:i]})
		start = i
	}
	return windows
}

func yearKey(r models.ReturnRecord) models.PeriodKey {
	return models.Year(r.TradingDay.Year())
}

func monthKey(r models.ReturnRecord) models.PeriodKey {
	return models.Month(r.TradingDay.Year(), r.TradingDay.Month())
}
