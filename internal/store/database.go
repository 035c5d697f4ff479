package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/database"
	"github.com/trogers1052/fund-metrics/internal/models"
)

// DBStore adapts the relational database to FundStore
type DBStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewDBStore wraps an open, migrated database
func NewDBStore(db *database.DB, log zerolog.Logger) *DBStore {
	return &DBStore{
		db:  db,
		log: log.With().Str("store", string(db.Dialect())).Logger(),
	}
}

// IsEmpty reports whether no record is stored
func (s *DBStore) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.db.CountNAVRecords(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// LoadAll returns every record grouped by code, ascending by trading day
func (s *DBStore) LoadAll(ctx context.Context) (map[string][]models.NAVRecord, error) {
	records, err := s.db.GetAllNAVRecords(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByCode(records), nil
}

// LoadFund returns one fund's records ascending by trading day
func (s *DBStore) LoadFund(ctx context.Context, code string) ([]models.NAVRecord, error) {
	return s.db.GetNAVRecordsByCode(ctx, code)
}

// AppendBatch inserts the novel candidates in one transaction. A key
// conflict the pre-filter did not see aborts the whole batch.
func (s *DBStore) AppendBatch(ctx context.Context, candidates []models.NAVRecord) (int, error) {
	ix, err := s.index(ctx)
	if err != nil {
		return 0, err
	}

	novel, err := NovelRecords(ix, candidates)
	if err != nil {
		return 0, err
	}
	if len(novel) == 0 {
		s.log.Debug().Int("candidates", len(candidates)).Msg("nothing new to append")
		return 0, nil
	}

	n, err := s.db.InsertNAVRecords(ctx, novel)
	if errors.Is(err, database.ErrUniqueViolation) {
		return 0, &ConstraintViolationError{Err: err}
	}
	if err != nil {
		return 0, err
	}

	s.log.Info().Int("candidates", len(candidates)).Int("inserted", n).Msg("appended records")
	return n, nil
}

func (s *DBStore) index(ctx context.Context) (*Index, error) {
	keys, err := s.db.GetNAVRecordKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored keys: %w", err)
	}
	funds, err := s.db.GetFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored funds: %w", err)
	}

	names := make(map[string]string, len(funds))
	for _, f := range funds {
		names[f.Code] = f.Name
	}

	ix := NewIndex()
	for _, k := range keys {
		ix.Add(k, names[k.Code])
	}
	return ix, nil
}

// Close closes the database connection
func (s *DBStore) Close() error {
	return s.db.Close()
}
