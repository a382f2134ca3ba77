// Package store keeps the canonical dataset: the in-process working set and
// the sheet backends the dataset is persisted to.
package store

import (
	"context"
	"fmt"

	"github.com/AngelCh415/campaign-dash/internal/config"
)

// SheetStore persists named two-dimensional grids. Replace swaps the whole
// sheet; there is no append.
type SheetStore interface {
	Read(ctx context.Context, sheet string) ([][]any, error)
	Replace(ctx context.Context, sheet string, grid [][]any) error
	Close() error
}

// Open builds the SheetStore selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config, c HTTPDoer) (SheetStore, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return NewMemorySheets(), nil
	case "sqlite":
		return OpenSQL(ctx, "sqlite", cfg.StoreDSN, DialectSQLite)
	case "postgres":
		return OpenSQL(ctx, "postgres", cfg.StoreDSN, DialectPostgres)
	case "remote":
		return NewRemoteSheets(c, cfg.StoreURL)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
