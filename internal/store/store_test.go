package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/fund-metrics/internal/models"
)

func day(s string) time.Time {
	d, err := models.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func rec(code, name, tradingDay, cum string) models.NAVRecord {
	return models.NAVRecord{
		Code:       code,
		Name:       name,
		TradingDay: day(tradingDay),
		UnitNAV:    decimal.RequireFromString(cum),
		CumNAV:     decimal.RequireFromString(cum),
	}
}

func pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestNovelRecords(t *testing.T) {
	stored := []models.NAVRecord{
		rec("000001", "Alpha", "2024-01-02", "1.0000"),
		rec("000001", "Alpha", "2024-01-03", "1.0100"),
	}

	t.Run("keeps only unseen keys", func(t *testing.T) {
		novel, err := NovelRecords(IndexRecords(stored), []models.NAVRecord{
			rec("000001", "Alpha", "2024-01-03", "1.0100"),
			rec("000001", "Alpha", "2024-01-04", "1.0200"),
			rec("000002", "Beta", "2024-01-02", "2.0000"),
		})
		require.NoError(t, err)
		require.Len(t, novel, 2)
		assert.Equal(t, day("2024-01-04"), novel[0].TradingDay)
		assert.Equal(t, "000002", novel[1].Code)
	})

	t.Run("first occurrence wins within a batch", func(t *testing.T) {
		novel, err := NovelRecords(NewIndex(), []models.NAVRecord{
			rec("000002", "Beta", "2024-01-02", "2.0000"),
			rec("000002", "Beta", "2024-01-02", "9.9999"),
		})
		require.NoError(t, err)
		require.Len(t, novel, 1)
		assert.True(t, decimal.RequireFromString("2.0000").Equal(novel[0].CumNAV))
	})

	t.Run("trading day is normalized before comparison", func(t *testing.T) {
		late := rec("000001", "Alpha", "2024-01-03", "1.0100")
		late.TradingDay = late.TradingDay.Add(15 * time.Hour)

		novel, err := NovelRecords(IndexRecords(stored), []models.NAVRecord{late})
		require.NoError(t, err)
		assert.Empty(t, novel)
	})

	t.Run("name conflicting with stored records", func(t *testing.T) {
		_, err := NovelRecords(IndexRecords(stored), []models.NAVRecord{
			rec("000001", "Renamed", "2024-01-05", "1.0300"),
		})
		assert.True(t, errors.Is(err, ErrInconsistentName))
	})

	t.Run("name conflicting within the batch", func(t *testing.T) {
		_, err := NovelRecords(NewIndex(), []models.NAVRecord{
			rec("000009", "One", "2024-01-02", "1.0000"),
			rec("000009", "Two", "2024-01-03", "1.0000"),
		})
		assert.True(t, errors.Is(err, ErrInconsistentName))
	})

	t.Run("malformed candidates", func(t *testing.T) {
		for _, bad := range []models.NAVRecord{
			rec("1", "Short", "2024-01-02", "1.0000"),
			rec("000003", "", "2024-01-02", "1.0000"),
			{Code: "000003", Name: "No day"},
		} {
			_, err := NovelRecords(NewIndex(), []models.NAVRecord{bad})
			assert.True(t, errors.Is(err, ErrInvalidRecord), "%+v", bad)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		novel, err := NovelRecords(IndexRecords(stored), nil)
		require.NoError(t, err)
		assert.Empty(t, novel)
	})
}

func TestGroupByCode(t *testing.T) {
	grouped := GroupByCode([]models.NAVRecord{
		rec("000002", "Beta", "2024-01-03", "2.0100"),
		rec("000001", "Alpha", "2024-01-03", "1.0100"),
		rec("000002", "Beta", "2024-01-02", "2.0000"),
	})

	assert.Equal(t, []string{"000001", "000002"}, SortedCodes(grouped))
	require.Len(t, grouped["000002"], 2)
	assert.Equal(t, day("2024-01-02"), grouped["000002"][0].TradingDay)
	assert.Equal(t, day("2024-01-03"), grouped["000002"][1].TradingDay)
}

func TestCSVRoundTrip(t *testing.T) {
	withPct := rec("000001", "Alpha, Growth", "2024-01-03", "1.0100")
	withPct.ReportedChangePct = pct("1.00")
	records := []models.NAVRecord{rec("000001", "Alpha, Growth", "2024-01-02", "1.0000"), withPct}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "Code,Name,TradingDay,UnitNAV,CumNAV,Return\n"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range records {
		assert.True(t, records[i].Equal(got[i]), "row %d: %+v", i, got[i])
	}
}

func TestReadCSV(t *testing.T) {
	t.Run("keeps leading zeros in codes", func(t *testing.T) {
		got, err := ReadCSV(strings.NewReader(
			"\ufeffCode,Name,TradingDay,UnitNAV,CumNAV,Return\n" +
				"000123,Fund,2024-01-02,1.2345,3.4560,0.12\n"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "000123", got[0].Code)
		assert.True(t, got[0].ReportedChangePct.Valid)
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := ReadCSV(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("wrong header", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("Code,Name,Date,UnitNAV,CumNAV,Return\n"))
		assert.Error(t, err)
	})

	t.Run("bad value names the line", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(
			"Code,Name,TradingDay,UnitNAV,CumNAV,Return\n" +
				"000123,Fund,2024-01-02,1.0,1.0,\n" +
				"000123,Fund,2024-01-03,1.0,abc,\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 3")
	})
}
