package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/expo-cli/internal/config"
	"github.com/sells-group/expo-cli/internal/store"
)

// initStore opens the run store named by the config. Callers own Close.
func initStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		path := cfg.Store.Path
		if path == "" {
			path = "expo.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Store.Driver)
	}
}

// openRunStore validates config for run-history access, opens the store,
// and applies migrations.
func openRunStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if err := cfg.Validate("runs"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "store: migrate")
	}

	return st, nil
}
