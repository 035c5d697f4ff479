package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trogers1052/fund-metrics/internal/database"
	"github.com/trogers1052/fund-metrics/internal/models"
)

// backend opens a fresh store; reopen opens a second handle on the same data
type backend struct {
	name   string
	open   func(t *testing.T) (FundStore, func(t *testing.T) FundStore)
	skipIf func() bool
}

func backends() []backend {
	return []backend{
		{
			name: "file",
			open: func(t *testing.T) (FundStore, func(t *testing.T) FundStore) {
				path := filepath.Join(t.TempDir(), "local_db.csv")
				reopen := func(t *testing.T) FundStore {
					s, err := NewFileStore(path, zerolog.Nop())
					require.NoError(t, err)
					return s
				}
				return reopen(t), reopen
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) (FundStore, func(t *testing.T) FundStore) {
				path := filepath.Join(t.TempDir(), "fundnav.db")
				reopen := func(t *testing.T) FundStore {
					db, err := database.NewSQLite(path)
					require.NoError(t, err)
					require.NoError(t, db.Migrate())
					return NewDBStore(db, zerolog.Nop())
				}
				return reopen(t), reopen
			},
		},
		{
			name:   "postgres",
			skipIf: testing.Short,
			open: func(t *testing.T) (FundStore, func(t *testing.T) FundStore) {
				connStr := startPostgres(t)
				reopen := func(t *testing.T) FundStore {
					db, err := database.New(connStr)
					require.NoError(t, err)
					require.NoError(t, db.Migrate())
					return NewDBStore(db, zerolog.Nop())
				}
				return reopen(t), reopen
			},
		},
	}
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return connStr
}

func fixtureBatch() []models.NAVRecord {
	a := rec("000001", "Alpha", "2024-01-03", "1.0050")
	a.ReportedChangePct = pct("0.50")
	return []models.NAVRecord{
		rec("000001", "Alpha", "2024-01-02", "1.0000"),
		a,
		rec("000001", "Alpha", "2024-01-05", "0.9980"),
		rec("110022", "Beta", "2024-01-02", "2.5000"),
		rec("110022", "Beta", "2024-01-03", "2.5100"),
	}
}

func TestFundStoreContract(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			if b.skipIf != nil && b.skipIf() {
				t.Skip("skipping integration test in short mode")
			}

			s, reopen := b.open(t)
			defer s.Close()

			empty, err := s.IsEmpty(ctx)
			require.NoError(t, err)
			assert.True(t, empty)

			all, err := s.LoadAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			// append is idempotent
			n, err := s.AppendBatch(ctx, fixtureBatch())
			require.NoError(t, err)
			assert.Equal(t, 5, n)

			n, err = s.AppendBatch(ctx, fixtureBatch())
			require.NoError(t, err)
			assert.Zero(t, n)

			empty, err = s.IsEmpty(ctx)
			require.NoError(t, err)
			assert.False(t, empty)

			// overlapping batch writes only the new day
			n, err = s.AppendBatch(ctx, []models.NAVRecord{
				rec("000001", "Alpha", "2024-01-05", "0.9980"),
				rec("000001", "Alpha", "2024-01-04", "1.0010"),
				rec("000001", "Alpha", "2024-01-04", "1.0010"),
			})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			// conflicting name rejects the batch and writes nothing
			_, err = s.AppendBatch(ctx, []models.NAVRecord{
				rec("000077", "Gamma", "2024-01-02", "1.0000"),
				rec("110022", "Renamed", "2024-01-08", "2.6000"),
			})
			assert.True(t, errors.Is(err, ErrInconsistentName))

			all, err = s.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assertAscending(t, all)
			assert.Len(t, all["000001"], 4)
			assert.Len(t, all["110022"], 2)
			assert.True(t, all["000001"][1].ReportedChangePct.Valid)

			fund, err := s.LoadFund(ctx, "000001")
			require.NoError(t, err)
			require.Len(t, fund, 4)
			for i := range fund {
				assert.True(t, all["000001"][i].Equal(fund[i]), "000001[%d]", i)
			}
			unknown, err := s.LoadFund(ctx, "999999")
			require.NoError(t, err)
			assert.Empty(t, unknown)

			// a second handle sees the same records
			require.NoError(t, s.Close())
			s = reopen(t)
			defer s.Close()
			again, err := s.LoadAll(ctx)
			require.NoError(t, err)
			assertSameRecords(t, all, again)
		})
	}
}

func TestFundStoreBackendEquivalence(t *testing.T) {
	ctx := context.Background()
	batches := [][]models.NAVRecord{
		fixtureBatch(),
		{
			rec("000001", "Alpha", "2024-01-05", "0.9980"),
			rec("000001", "Alpha", "2024-01-08", "1.0100"),
			rec("519674", "Delta", "2023-12-29", "3.0000"),
		},
		fixtureBatch(),
	}

	var reference map[string][]models.NAVRecord
	for _, b := range backends() {
		if b.skipIf != nil && b.skipIf() {
			continue
		}
		s, _ := b.open(t)

		for _, batch := range batches {
			_, err := s.AppendBatch(ctx, batch)
			require.NoError(t, err, b.name)
		}
		got, err := s.LoadAll(ctx)
		require.NoError(t, err, b.name)
		require.NoError(t, s.Close())

		if reference == nil {
			reference = got
			continue
		}
		assertSameRecords(t, reference, got)
	}
}

func TestFileStoreRejectsDuplicateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local_db.csv")
	content := "Code,Name,TradingDay,UnitNAV,CumNAV,Return\n" +
		"000001,Alpha,2024-01-02,1.0,1.0,\n" +
		"000001,Alpha,2024-01-02,1.0,1.0,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := NewFileStore(path, zerolog.Nop())
	var cv *ConstraintViolationError
	assert.True(t, errors.As(err, &cv))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "nested", "local_db.csv"), zerolog.Nop())
	require.NoError(t, err)

	_, err = s.AppendBatch(context.Background(), fixtureBatch())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "local_db.csv", entries[0].Name())
}

func TestDBStoreReportsRejectedInsert(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fundnav.db")

	db, err := database.NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	s := NewDBStore(db, zerolog.Nop())
	defer s.Close()

	_, err = s.AppendBatch(ctx, fixtureBatch())
	require.NoError(t, err)

	// a second connection installs a trigger that rejects every later insert
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TRIGGER reject_nav BEFORE INSERT ON fund_nav
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = s.AppendBatch(ctx, []models.NAVRecord{
		rec("000001", "Alpha", "2024-01-08", "1.0200"),
		rec("000088", "Epsilon", "2024-01-08", "1.0000"),
	})
	var cv *ConstraintViolationError
	require.True(t, errors.As(err, &cv), "got %v", err)
	assert.True(t, errors.Is(err, database.ErrUniqueViolation))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "nothing from the rejected batch is stored")
	assert.Len(t, all["000001"], 3)
}

func TestConstraintViolationUnwraps(t *testing.T) {
	err := error(&ConstraintViolationError{Err: fmt.Errorf("failed to insert: %w", database.ErrUniqueViolation)})

	assert.True(t, errors.Is(err, database.ErrUniqueViolation))
	var cv *ConstraintViolationError
	assert.True(t, errors.As(fmt.Errorf("run: %w", err), &cv))
}

func assertAscending(t *testing.T, grouped map[string][]models.NAVRecord) {
	t.Helper()
	for code, recs := range grouped {
		for i := 1; i < len(recs); i++ {
			assert.True(t, recs[i-1].TradingDay.Before(recs[i].TradingDay), "%s not ascending at %d", code, i)
		}
	}
}

func assertSameRecords(t *testing.T, want, got map[string][]models.NAVRecord) {
	t.Helper()
	require.Equal(t, SortedCodes(want), SortedCodes(got))
	for code, recs := range want {
		require.Len(t, got[code], len(recs), code)
		for i := range recs {
			assert.True(t, recs[i].Equal(got[code][i]), "%s[%d]: want %+v, got %+v", code, i, recs[i], got[code][i])
		}
	}
}
