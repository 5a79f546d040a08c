package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/config"
	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/core/oracle"
	"github.com/LeJamon/swapx/internal/core/treasury"
	"github.com/LeJamon/swapx/internal/events"
	"github.com/LeJamon/swapx/internal/log"
	"github.com/LeJamon/swapx/internal/metrics"
	"github.com/LeJamon/swapx/internal/storage"
	"github.com/LeJamon/swapx/internal/storage/database"
	"github.com/LeJamon/swapx/internal/storage/ledgerstore"
)

// app is the set of components one configuration produces.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	dbs     database.Manager
	ledger  *ledger.Ledger
	book    *treasury.Book
	bus     *events.Bus
	journal *events.Journal
	metrics *prometheus.Registry
}

// openApp opens storage and builds the ledger with its collaborators.
func openApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.metrics = metrics.Init(log.Component(logger, "metrics"))

	if a.dbs, err = storage.Open(cfg.Storage.Backend, cfg.Storage.Path); err != nil {
		return nil, err
	}
	ledgerDB, err := a.dbs.OpenDB(ledgerstore.DBName)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	rates, err := buildOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	var tr ledger.Treasury
	switch cfg.Treasury.Kind {
	case config.TreasuryBook:
		db, err := a.dbs.OpenDB(treasury.DBName)
		if err != nil {
			return nil, fmt.Errorf("open treasury database: %w", err)
		}
		if a.book, err = treasury.NewBook(ctx, db, treasury.WithLogger(log.Component(logger, "treasury"))); err != nil {
			return nil, err
		}
		tr = a.book
	case config.TreasuryDiscard:
		logger.Warn().Msg("treasury kind is discard, protocol fees are not recorded")
		tr = treasury.Discard{Logger: log.Component(logger, "treasury")}
	default:
		return nil, fmt.Errorf("unknown treasury kind %q", cfg.Treasury.Kind)
	}

	a.bus = events.NewBus(cfg.Events.BusBuffer, log.Component(logger, "events"))
	var publisher ledger.Publisher = a.bus
	if cfg.Events.JournalDriver != "" {
		if a.journal, err = events.OpenJournal(ctx, cfg.Events.JournalDriver, cfg.Events.JournalDSN); err != nil {
			return nil, err
		}
		publisher = events.Multi{a.journal, a.bus}
	}

	fund, err := cfg.Ledger.ProtocolFundID()
	if err != nil {
		return nil, fmt.Errorf("protocol fund: %w", err)
	}
	a.ledger, err = ledger.New(ctx,
		ledger.Config{FeePercentage: cfg.Ledger.FeePercentage, ProtocolFund: fund},
		rates, tr,
		ledger.WithStore(ledgerstore.New(ledgerDB)),
		ledger.WithPublisher(publisher),
		ledger.WithLogger(log.Component(logger, "ledger")),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the journal and storage.
func (a *app) Close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.dbs != nil {
		errs = append(errs, a.dbs.Close())
	}
	return errors.Join(errs...)
}

// buildOracle returns the configured rate source, behind a cache when
// cache_size is positive.
func buildOracle(cfg config.OracleConfig) (ledger.RateOracle, error) {
	var next ledger.RateOracle
	switch cfg.Kind {
	case config.OracleParity:
		next = oracle.Parity{}
	case config.OracleStatic:
		rates := make(map[oracle.Pair]amount.Balance, len(cfg.Rates))
		for i, r := range cfg.Rates {
			from, to, rate, err := r.Parse()
			if err != nil {
				return nil, fmt.Errorf("oracle rate %d: %w", i, err)
			}
			rates[oracle.Pair{In: from, Out: to}] = rate
		}
		static, err := oracle.NewStatic(rates)
		if err != nil {
			return nil, err
		}
		next = static
	default:
		return nil, fmt.Errorf("unknown oracle kind %q", cfg.Kind)
	}

	if cfg.CacheSize > 0 {
		return oracle.NewCached(next, cfg.CacheSize, cfg.CacheTTL), nil
	}
	return next, nil
}
