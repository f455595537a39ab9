package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/store/postgres"
	"github.com/ginjaninja78/warranty-orders/internal/store/sqlite"
)

// errNoStore is returned by commands that need a store when the driver is
// "none".
var errNoStore = errors.New("no store configured (set store.driver to postgres or sqlite)")

// openStore connects the configured driver. It returns nil, nil for
// DriverNone.
func openStore(ctx context.Context, cfg *config.MainConfig) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDriver, cfg.Store.Driver)
	}
}

// openLoader opens and migrates the store and wraps it in a Loader that
// clears the table before loading when clearExisting is set. The returned
// close function is never nil.
func openLoader(ctx context.Context, cfg *config.MainConfig, log *zap.Logger, clearExisting bool) (*store.Loader, func(), error) {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open store: %w", err)
	}
	if s == nil {
		return nil, func() {}, nil
	}

	closeFn := func() {
		if err := s.Close(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}

	if err := s.Migrate(ctx); err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("failed to migrate store: %w", err)
	}

	log.Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return store.NewLoader(s, cfg.Store.BatchSize, clearExisting, log), closeFn, nil
}
