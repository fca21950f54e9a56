package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/store"
)

// initializeDatabase opens the user store, migrates the schema and seeds the
// administrator role on first boot. The whole step is bounded by DBInitTimeout.
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	initCtx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(initCtx, cfg.DatabaseDriver, cfg.DatabaseDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s user store: %w", cfg.DatabaseDriver, err)
	}

	users, err := db.CountUsers(initCtx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to inspect user store: %w", err)
	}
	log.Printf("User store ready (driver: %s, users: %d)", cfg.DatabaseDriver, users)
	return db, nil
}
