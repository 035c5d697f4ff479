package store

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/config"
	"github.com/trogers1052/fund-metrics/internal/database"
)

// New opens the backend selected by cfg.Store. The relational backends are
// migrated before use.
func New(cfg *config.Config, log zerolog.Logger) (FundStore, error) {
	if cfg.Store.Local {
		log.Warn().Str("path", cfg.Store.FilePath).Msg("running with local file store, database ignored")
		return NewFileStore(cfg.Store.FilePath, log)
	}

	var (
		db  *database.DB
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err = database.New(cfg.Database.ConnectionString())
	case config.DriverSQLite:
		db, err = database.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("driver", cfg.Store.Driver).Msg("running with database store, local file ignored")
	return NewDBStore(db, log), nil
}
