package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// Header is the column layout of the local record file
var Header = []string{"Code", "Name", "TradingDay", "UnitNAV", "CumNAV", "Return"}

// ReadCSV parses records in the local file layout. An empty Return cell
// means the source reported no change percentage.
func ReadCSV(r io.Reader) ([]models.NAVRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	head[0] = strings.TrimPrefix(head[0], "\ufeff")
	for i, col := range Header {
		if head[i] != col {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i+1, head[i], col)
		}
	}

	var records []models.NAVRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (models.NAVRecord, error) {
	day, err := models.ParseDay(row[2])
	if err != nil {
		return models.NAVRecord{}, fmt.Errorf("invalid trading day %q: %w", row[2], err)
	}
	unit, err := decimal.NewFromString(row[3])
	if err != nil {
		return models.NAVRecord{}, fmt.Errorf("invalid unit nav %q: %w", row[3], err)
	}
	cum, err := decimal.NewFromString(row[4])
	if err != nil {
		return models.NAVRecord{}, fmt.Errorf("invalid cum nav %q: %w", row[4], err)
	}

	var pct decimal.NullDecimal
	if row[5] != "" {
		d, err := decimal.NewFromString(row[5])
		if err != nil {
			return models.NAVRecord{}, fmt.Errorf("invalid return %q: %w", row[5], err)
		}
		pct = decimal.NewNullDecimal(d)
	}

	return models.NAVRecord{
		Code:              row[0],
		Name:              row[1],
		TradingDay:        day,
		UnitNAV:           unit,
		CumNAV:            cum,
		ReportedChangePct: pct,
	}, nil
}

// WriteCSV writes records in the local file layout, header first
func WriteCSV(w io.Writer, records []models.NAVRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		pct := ""
		if r.ReportedChangePct.Valid {
			pct = r.ReportedChangePct.Decimal.String()
		}
		row := []string{
			r.Code,
			r.Name,
			r.TradingDay.Format(models.DateLayout),
			r.UnitNAV.String(),
			r.CumNAV.String(),
			pct,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s %s: %w", r.Code, row[2], err)
		}
	}
	cw.Flush()
	return cw.Error()
}
