package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// FileStore keeps every record in one CSV file. The file is loaded once on
// open and rewritten whole on each append.
type FileStore struct {
	path    string
	records []models.NAVRecord
	index   *Index
	log     zerolog.Logger
}

// NewFileStore opens the store at path. A missing file is an empty store.
func NewFileStore(path string, log zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		index: NewIndex(),
		log:   log.With().Str("store", "file").Str("path", path).Logger(),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		s.log.Info().Msg("file store opened empty")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store file %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read store file %s: %w", path, err)
	}

	// the file itself must already be duplicate free
	novel, err := NovelRecords(s.index, records)
	if err != nil {
		return nil, fmt.Errorf("failed to index store file %s: %w", path, err)
	}
	if len(novel) != len(records) {
		return nil, &ConstraintViolationError{
			Err: fmt.Errorf("store file %s holds %d duplicate records", path, len(records)-len(novel)),
		}
	}

	s.records = novel
	s.index = IndexRecords(novel)
	s.log.Info().Int("records", len(novel)).Msg("file store opened")
	return s, nil
}

// IsEmpty reports whether no record is stored
func (s *FileStore) IsEmpty(ctx context.Context) (bool, error) {
	return len(s.records) == 0, nil
}

// LoadAll returns every record grouped by code, ascending by trading day
func (s *FileStore) LoadAll(ctx context.Context) (map[string][]models.NAVRecord, error) {
	cp := make([]models.NAVRecord, len(s.records))
	copy(cp, s.records)
	return GroupByCode(cp), nil
}

// LoadFund returns one fund's records ascending by trading day
func (s *FileStore) LoadFund(ctx context.Context, code string) ([]models.NAVRecord, error) {
	var out []models.NAVRecord
	for _, rec := range s.records {
		if rec.Code == code {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TradingDay.Before(out[j].TradingDay)
	})
	return out, nil
}

// AppendBatch merges the novel candidates and rewrites the file atomically.
// The in-memory state changes only after the file is replaced.
func (s *FileStore) AppendBatch(ctx context.Context, candidates []models.NAVRecord) (int, error) {
	novel, err := NovelRecords(s.index, candidates)
	if err != nil {
		return 0, err
	}
	if len(novel) == 0 {
		s.log.Debug().Int("candidates", len(candidates)).Msg("nothing new to append")
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	merged := make([]models.NAVRecord, 0, len(s.records)+len(novel))
	merged = append(merged, s.records...)
	merged = append(merged, novel...)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Code != merged[j].Code {
			return merged[i].Code < merged[j].Code
		}
		return merged[i].TradingDay.Before(merged[j].TradingDay)
	})

	if err := s.writeFile(merged); err != nil {
		return 0, err
	}

	s.records = merged
	for _, r := range novel {
		s.index.Add(r.Key(), r.Name)
	}
	s.log.Info().Int("candidates", len(candidates)).Int("inserted", len(novel)).Msg("appended records")
	return len(novel), nil
}

func (s *FileStore) writeFile(records []models.NAVRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := WriteCSV(tmpFile, records); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store file %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; every append is already on disk
func (s *FileStore) Close() error {
	return nil
}
