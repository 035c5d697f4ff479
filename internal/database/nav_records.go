package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// insertChunkSize bounds the rows per INSERT statement to stay under the
// bind parameter limits of both dialects
const insertChunkSize = 500

const navColumns = "code, name, trading_day, unit_nav, cum_nav, daily_return"

// InsertNAVRecords inserts records in one transaction. There is no conflict
// clause: a duplicate key aborts the statement, the transaction is rolled
// back and the error wraps ErrUniqueViolation.
func (db *DB) InsertNAVRecords(ctx context.Context, records []models.NAVRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	verb := "INSERT INTO"
	if db.dialect == DialectSQLite {
		verb = "INSERT OR ABORT INTO"
	}

	for start := 0; start < len(records); start += insertChunkSize {
		end := min(start+insertChunkSize, len(records))
		chunk := records[start:end]

		query := fmt.Sprintf("%s fund_nav (%s) VALUES %s", verb, navColumns, db.valuesList(len(chunk), 6))
		args := make([]any, 0, len(chunk)*6)
		for _, r := range chunk {
			args = append(args,
				r.Code, r.Name, r.TradingDay.Format(models.DateLayout),
				r.UnitNAV.String(), r.CumNAV.String(), r.ReportedChangePct,
			)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("failed to insert nav records for %s: %w: %v", chunk[0].Code, ErrUniqueViolation, err)
			}
			return 0, fmt.Errorf("failed to insert nav records for %s: %w", chunk[0].Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(records), nil
}

// CountNAVRecords returns the number of stored records
func (db *DB) CountNAVRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM fund_nav`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count nav records: %w", err)
	}
	return n, nil
}

// GetAllNAVRecords retrieves every record ordered by code then trading day
func (db *DB) GetAllNAVRecords(ctx context.Context) ([]models.NAVRecord, error) {
	query := `
		SELECT ` + navColumns + `
		FROM fund_nav
		ORDER BY code ASC, trading_day ASC
	`
	return db.scanNAVRecords(db.conn.QueryContext(ctx, query))
}

// GetNAVRecordsByCode retrieves one fund's records ascending by trading day
func (db *DB) GetNAVRecordsByCode(ctx context.Context, code string) ([]models.NAVRecord, error) {
	query := `
		SELECT ` + navColumns + `
		FROM fund_nav
		WHERE code = ` + db.placeholder(1) + `
		ORDER BY trading_day ASC
	`
	return db.scanNAVRecords(db.conn.QueryContext(ctx, query, code))
}

// GetNAVRecordKeys returns the identity of every stored record
func (db *DB) GetNAVRecordKeys(ctx context.Context) ([]models.RecordKey, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT code, trading_day FROM fund_nav`)
	if err != nil {
		return nil, fmt.Errorf("failed to get nav record keys: %w", err)
	}
	defer rows.Close()

	var keys []models.RecordKey
	for rows.Next() {
		var k models.RecordKey
		var d dayValue
		if err := rows.Scan(&k.Code, &d); err != nil {
			return nil, fmt.Errorf("failed to scan nav record key: %w", err)
		}
		k.TradingDay = d.Time
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nav record keys: %w", err)
	}
	return keys, nil
}

// GetFunds returns the distinct funds with stored records
func (db *DB) GetFunds(ctx context.Context) ([]models.Fund, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT code, name FROM fund_nav ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get funds: %w", err)
	}
	defer rows.Close()

	var funds []models.Fund
	for rows.Next() {
		var f models.Fund
		if err := rows.Scan(&f.Code, &f.Name); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate funds: %w", err)
	}
	return funds, nil
}

func (db *DB) scanNAVRecords(rows *sql.Rows, err error) ([]models.NAVRecord, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query nav records: %w", err)
	}
	defer rows.Close()

	var records []models.NAVRecord
	for rows.Next() {
		var r models.NAVRecord
		var d dayValue

		err := rows.Scan(&r.Code, &r.Name, &d, &r.UnitNAV, &r.CumNAV, &r.ReportedChangePct)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nav record: %w", err)
		}
		r.TradingDay = d.Time
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nav records: %w", err)
	}
	return records, nil
}

// dayValue scans a DATE (postgres) or YYYY-MM-DD TEXT (sqlite) column
type dayValue struct {
	time.Time
}

func (d *dayValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = models.Day(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("unsupported trading day type %T", src)
}

func (d *dayValue) parse(s string) error {
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	t, err := models.ParseDay(s)
	if err != nil {
		return fmt.Errorf("invalid trading day %q: %w", s, err)
	}
	d.Time = t
	return nil
}
