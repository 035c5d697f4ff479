package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/fund-metrics/internal/models"
)

func navRecord(code string, day time.Time, unit, cum string) models.NAVRecord {
	return models.NAVRecord{
		Code:       code,
		Name:       "Fund " + code,
		TradingDay: day,
		UnitNAV:    decimal.RequireFromString(unit),
		CumNAV:     decimal.RequireFromString(cum),
	}
}

func TestNAVRecordRepositorySQLite(t *testing.T) {
	testDB := SetupSQLiteDB(t)
	defer testDB.Cleanup(t)

	testNAVRecordRepository(t, testDB)
}

func TestNAVRecordRepositoryPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	testNAVRecordRepository(t, testDB)
}

func testNAVRecordRepository(t *testing.T, testDB *TestDB) {
	ctx := context.Background()
	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	jan3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	t.Run("InsertNAVRecords inserts a batch", func(t *testing.T) {
		testDB.TruncateAll(t)

		recs := []models.NAVRecord{
			navRecord("000001", jan2, "1.2345", "3.4560"),
			navRecord("000001", jan3, "1.2400", "3.4615"),
			navRecord("110022", jan2, "2.0000", "2.5000"),
		}
		recs[1].ReportedChangePct = decimal.NewNullDecimal(decimal.RequireFromString("0.45"))

		n, err := testDB.InsertNAVRecords(ctx, recs)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		count, err := testDB.CountNAVRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("GetAllNAVRecords orders by code and day", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.InsertNAVRecords(ctx, []models.NAVRecord{
			navRecord("110022", jan2, "2.0000", "2.5000"),
			navRecord("000001", jan3, "1.2400", "3.4615"),
			navRecord("000001", jan2, "1.2345", "3.4560"),
		})
		require.NoError(t, err)

		got, err := testDB.GetAllNAVRecords(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "000001", got[0].Code)
		assert.Equal(t, jan2, got[0].TradingDay)
		assert.Equal(t, jan3, got[1].TradingDay)
		assert.Equal(t, "110022", got[2].Code)
		assert.True(t, decimal.RequireFromString("3.4560").Equal(got[0].CumNAV))
		assert.False(t, got[0].ReportedChangePct.Valid)
	})

	t.Run("round trip preserves values", func(t *testing.T) {
		testDB.TruncateAll(t)

		rec := navRecord("519674", jan2, "1.0001", "4.1234")
		rec.ReportedChangePct = decimal.NewNullDecimal(decimal.RequireFromString("-1.23"))
		_, err := testDB.InsertNAVRecords(ctx, []models.NAVRecord{rec})
		require.NoError(t, err)

		got, err := testDB.GetNAVRecordsByCode(ctx, "519674")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, rec.Equal(got[0]), "got %+v", got[0])
	})

	t.Run("duplicate key aborts the whole batch", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.InsertNAVRecords(ctx, []models.NAVRecord{navRecord("000001", jan2, "1.0000", "1.0000")})
		require.NoError(t, err)

		_, err = testDB.InsertNAVRecords(ctx, []models.NAVRecord{
			navRecord("000001", jan3, "1.0100", "1.0100"),
			navRecord("000001", jan2, "1.0000", "1.0000"),
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUniqueViolation))

		count, err := testDB.CountNAVRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "no row of the rejected batch may be written")
	})

	t.Run("same code and day under another name is rejected", func(t *testing.T) {
		testDB.TruncateAll(t)

		rec := navRecord("000001", jan2, "1.0000", "1.0000")
		_, err := testDB.InsertNAVRecords(ctx, []models.NAVRecord{rec})
		require.NoError(t, err)

		rec.Name = "Renamed"
		_, err = testDB.InsertNAVRecords(ctx, []models.NAVRecord{rec})
		assert.True(t, errors.Is(err, ErrUniqueViolation))
	})

	t.Run("large batches span several statements", func(t *testing.T) {
		testDB.TruncateAll(t)

		var recs []models.NAVRecord
		for i := 0; i < insertChunkSize*2+17; i++ {
			recs = append(recs, navRecord("000003", jan2.AddDate(0, 0, i), "1.0000", "1.0000"))
		}
		n, err := testDB.InsertNAVRecords(ctx, recs)
		require.NoError(t, err)
		assert.Equal(t, len(recs), n)

		keys, err := testDB.GetNAVRecordKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, len(recs))
	})

	t.Run("GetFunds lists distinct funds", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.InsertNAVRecords(ctx, []models.NAVRecord{
			navRecord("000001", jan2, "1.0000", "1.0000"),
			navRecord("000001", jan3, "1.0000", "1.0000"),
			navRecord("000002", jan2, "1.0000", "1.0000"),
		})
		require.NoError(t, err)

		funds, err := testDB.GetFunds(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.Fund{
			{Code: "000001", Name: "Fund 000001"},
			{Code: "000002", Name: "Fund 000002"},
		}, funds)
	})

	t.Run("empty insert is a no-op", func(t *testing.T) {
		n, err := testDB.InsertNAVRecords(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
