package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sjsage522/psa10finder/config"
)

// ErrNoRecord is returned by Latest when no record matches the key
var ErrNoRecord = errors.New("no price record")

// PriceRecord is one row of the append-only price log
type PriceRecord struct {
	ID        int64
	CardName  string
	Price     *float64
	ScrapedAt time.Time
	URL       string
	ItemCount int
}

// Store persists price records. Records are only ever inserted; the latest
// record for a key is the most recent row whose card name contains the key.
type Store interface {
	Insert(ctx context.Context, rec PriceRecord) (int64, error)
	Latest(ctx context.Context, key string) (PriceRecord, error)
	History(ctx context.Context, key string, limit int) ([]PriceRecord, error)
	Close() error
}

// Open connects to the backend selected by cfg.StoreDriver and ensures the schema
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// PriceOf converts a scraped USD amount to the stored price column
func PriceOf(usd int) *float64 {
	price := float64(usd)
	return &price
}
