// Package store persists NAV records without duplicates behind one
// interface with a CSV file backend and a relational backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// CodeLength is the fixed width of a fund code
const CodeLength = 6

var (
	// ErrInconsistentName is returned when a batch would give a code two names
	ErrInconsistentName = errors.New("inconsistent fund name")
	// ErrInvalidRecord is returned for candidates that can never be stored
	ErrInvalidRecord = errors.New("invalid nav record")
)

// FundStore is the duplicate-free NAV record store
type FundStore interface {
	// IsEmpty reports whether no record is stored
	IsEmpty(ctx context.Context) (bool, error)
	// LoadAll returns every record grouped by code, ascending by trading day
	LoadAll(ctx context.Context) (map[string][]models.NAVRecord, error)
	// LoadFund returns one fund's records ascending by trading day, empty
	// when the code is unknown
	LoadFund(ctx context.Context, code string) ([]models.NAVRecord, error)
	// AppendBatch stores the candidates whose (code, trading day) is not yet
	// persisted and returns how many were written
	AppendBatch(ctx context.Context, candidates []models.NAVRecord) (int, error)
	Close() error
}

// ConstraintViolationError reports a write rejected by the key constraint.
// Nothing from the rejected batch is persisted.
type ConstraintViolationError struct {
	Err error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation: %v", e.Err)
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// Index is the set of persisted record keys and the name bound to each code
type Index struct {
	keys  map[models.RecordKey]struct{}
	names map[string]string
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{
		keys:  make(map[models.RecordKey]struct{}),
		names: make(map[string]string),
	}
}

// IndexRecords builds an index over stored records
func IndexRecords(records []models.NAVRecord) *Index {
	ix := NewIndex()
	for _, r := range records {
		ix.Add(r.Key(), r.Name)
	}
	return ix
}

// Add marks a key as persisted under name
func (ix *Index) Add(key models.RecordKey, name string) {
	key.TradingDay = models.Day(key.TradingDay)
	ix.keys[key] = struct{}{}
	if _, ok := ix.names[key.Code]; !ok {
		ix.names[key.Code] = name
	}
}

// Has reports whether key is persisted
func (ix *Index) Has(key models.RecordKey) bool {
	key.TradingDay = models.Day(key.TradingDay)
	_, ok := ix.keys[key]
	return ok
}

// Len returns the number of persisted keys
func (ix *Index) Len() int {
	return len(ix.keys)
}

// NovelRecords returns the candidates absent from ix, in input order.
// A key repeated within the batch keeps its first occurrence. Trading days
// are normalized to calendar dates. The batch is rejected as a whole when a
// candidate is malformed or names a code differently from ix or from an
// earlier candidate.
func NovelRecords(ix *Index, candidates []models.NAVRecord) ([]models.NAVRecord, error) {
	seen := make(map[models.RecordKey]struct{}, len(candidates))
	batchNames := make(map[string]string)
	var novel []models.NAVRecord

	for _, c := range candidates {
		if err := validate(c); err != nil {
			return nil, err
		}

		name, ok := ix.names[c.Code]
		if !ok {
			name, ok = batchNames[c.Code]
		}
		if ok && name != c.Name {
			return nil, fmt.Errorf("%w: code %s is %q, candidate says %q", ErrInconsistentName, c.Code, name, c.Name)
		}
		batchNames[c.Code] = c.Name

		c.TradingDay = models.Day(c.TradingDay)
		key := c.Key()
		if ix.Has(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		novel = append(novel, c)
	}
	return novel, nil
}

func validate(r models.NAVRecord) error {
	switch {
	case len(r.Code) != CodeLength:
		return fmt.Errorf("%w: code %q must be %d characters", ErrInvalidRecord, r.Code, CodeLength)
	case r.Name == "":
		return fmt.Errorf("%w: code %s has no name", ErrInvalidRecord, r.Code)
	case r.TradingDay.IsZero():
		return fmt.Errorf("%w: code %s has no trading day", ErrInvalidRecord, r.Code)
	}
	return nil
}

// GroupByCode groups records per code, each group ascending by trading day
func GroupByCode(records []models.NAVRecord) map[string][]models.NAVRecord {
	out := make(map[string][]models.NAVRecord)
	for _, r := range records {
		out[r.Code] = append(out[r.Code], r)
	}
	for _, recs := range out {
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].TradingDay.Before(recs[j].TradingDay)
		})
	}
	return out
}

// SortedCodes returns the codes of a grouped collection in ascending order
func SortedCodes(grouped map[string][]models.NAVRecord) []string {
	codes := make([]string, 0, len(grouped))
	for code := range grouped {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
