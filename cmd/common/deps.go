// Package common provides shared dependency construction for command
// implementations.
package common

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/jonesrussell/campuscnr/internal/config"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/links"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/store"
)

// Deps holds the process-wide dependencies shared by all commands: the
// configuration, the run-scoped logger, the single ledger connection, the
// fetch client and the link normalizer.
type Deps struct {
	Config     config.Config
	Logger     logger.Interface
	Store      *store.Store
	Fetcher    fetch.Getter
	Normalizer *links.Normalizer
}

// NewDeps loads the configuration and constructs the shared dependencies.
// Each invocation is tagged with a fresh run id for log correlation. The
// caller owns the returned store and must Close it at exit.
func NewDeps() (*Deps, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.With("run_id", uuid.NewString())

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath(), log.WithComponent("store"))
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:        cfg.HTTP.Timeout,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.HTTP.BackoffInitial,
		UserAgent:      cfg.HTTP.UserAgent,
	}, log.WithComponent("fetch"))

	norm, err := links.New(cfg.URLs.Base, log.WithComponent("links"))
	if err != nil {
		closeErr := st.Close()
		if closeErr != nil {
			log.WithError(closeErr).Error("failed to close store")
		}
		return nil, err
	}

	return &Deps{
		Config:     *cfg,
		Logger:     log,
		Store:      st,
		Fetcher:    fetcher,
		Normalizer: norm,
	}, nil
}

// Close drains the ledger connection, performing a final commit.
func (d *Deps) Close() {
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Error("failed to close store")
	}
}
