package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/psa10finder/logger"
	perrors "sjsage522/psa10finder/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS card_prices (
	id BIGSERIAL PRIMARY KEY,
	card_name TEXT NOT NULL,
	psa10_latest_price DOUBLE PRECISION,
	scraped_at TIMESTAMPTZ DEFAULT now(),
	url TEXT,
	item_count INTEGER
)`

const postgresSelect = `SELECT id, card_name, psa10_latest_price, scraped_at, url, item_count
FROM card_prices
WHERE strpos(card_name, $1) > 0
ORDER BY scraped_at DESC, id DESC`

// PostgresStore keeps the price log in a shared Postgres database
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// OpenPostgres connects to dsn and ensures the schema
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, perrors.NewStore("parse postgres dsn", err)
	}
	if cfg.MaxConns <= 0 || cfg.MaxConns > 4 {
		cfg.MaxConns = 4
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, perrors.NewStore("connect postgres", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, perrors.NewStore("create card_prices table", err)
	}
	log := logger.ForStore().WithField("driver", "postgres")
	log.Debug().Str("host", cfg.ConnConfig.Host).Int32("max_conns", cfg.MaxConns).Msg("Postgres store ready")
	return &PostgresStore{pool: pool, log: log}, nil
}

// Insert appends a record. A zero ScrapedAt takes the database default.
func (s *PostgresStore) Insert(ctx context.Context, rec PriceRecord) (int64, error) {
	var id int64
	var err error
	if rec.ScrapedAt.IsZero() {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO card_prices (card_name, psa10_latest_price, url, item_count) VALUES ($1, $2, $3, $4) RETURNING id`,
			rec.CardName, rec.Price, rec.URL, rec.ItemCount).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO card_prices (card_name, psa10_latest_price, scraped_at, url, item_count) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			rec.CardName, rec.Price, rec.ScrapedAt, rec.URL, rec.ItemCount).Scan(&id)
	}
	if err != nil {
		return 0, perrors.NewStore("insert price record", err)
	}
	s.log.Debug().Int64("id", id).Str("card_name", rec.CardName).Msg("Inserted price record")
	return id, nil
}

// Latest returns the most recent record whose card name contains key
func (s *PostgresStore) Latest(ctx context.Context, key string) (PriceRecord, error) {
	records, err := s.History(ctx, key, 1)
	if err != nil {
		return PriceRecord{}, err
	}
	if len(records) == 0 {
		return PriceRecord{}, ErrNoRecord
	}
	return records[0], nil
}

// History returns up to limit records matching key, newest first
func (s *PostgresStore) History(ctx context.Context, key string, limit int) ([]PriceRecord, error) {
	query := postgresSelect
	args := []any{key}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, perrors.NewStore("query price records", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PriceRecord, error) {
		var (
			rec       PriceRecord
			url       *string
			itemCount *int32
		)
		if err := row.Scan(&rec.ID, &rec.CardName, &rec.Price, &rec.ScrapedAt, &url, &itemCount); err != nil {
			return PriceRecord{}, err
		}
		if url != nil {
			rec.URL = *url
		}
		if itemCount != nil {
			rec.ItemCount = int(*itemCount)
		}
		rec.ScrapedAt = rec.ScrapedAt.UTC()
		return rec, nil
	})
	if err != nil {
		return nil, perrors.NewStore("scan price records", err)
	}
	return records, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
