package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sjsage522/psa10finder/logger"
	perrors "sjsage522/psa10finder/pkg/errors"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// SQLiteTimeLayout is the layout of CURRENT_TIMESTAMP
	SQLiteTimeLayout = "2006-01-02 15:04:05"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS card_prices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	card_name TEXT NOT NULL,
	psa10_latest_price REAL,
	scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	url TEXT,
	item_count INTEGER
)`

const sqliteSelect = `SELECT id, card_name, psa10_latest_price, strftime('%Y-%m-%d %H:%M:%S', scraped_at), url, item_count
FROM card_prices
WHERE instr(card_name, ?) > 0
ORDER BY scraped_at DESC, id DESC
LIMIT ?`

// SQLiteStore is the default single-file price log
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, perrors.NewStore("create database directory", err)
		}
	}

	log := logger.ForStore().WithField("path", path)

	// pragmas in the DSN apply to every pooled connection
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, perrors.NewStore("open sqlite db", err)
	}
	db.SetMaxOpenConns(1)
	if err := retryOnBusy(ctx, log, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, perrors.NewStore("connect sqlite db", err)
	}

	s := &SQLiteStore{db: db, path: path, log: log}
	if err := retryOnBusy(ctx, log, func() error {
		_, err := db.ExecContext(ctx, sqliteSchema)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, perrors.NewStore("create card_prices table", err)
	}
	log.Debug().Msg("SQLite store ready")
	return s, nil
}

// Path returns the database file
func (s *SQLiteStore) Path() string {
	return s.path
}

// Insert appends a record. A zero ScrapedAt takes the database default.
func (s *SQLiteStore) Insert(ctx context.Context, rec PriceRecord) (int64, error) {
	var (
		res sql.Result
		err error
	)
	err = retryOnBusy(ctx, s.log, func() error {
		if rec.ScrapedAt.IsZero() {
			res, err = s.db.ExecContext(ctx,
				`INSERT INTO card_prices (card_name, psa10_latest_price, url, item_count) VALUES (?, ?, ?, ?)`,
				rec.CardName, nullFloat(rec.Price), rec.URL, rec.ItemCount)
		} else {
			res, err = s.db.ExecContext(ctx,
				`INSERT INTO card_prices (card_name, psa10_latest_price, scraped_at, url, item_count) VALUES (?, ?, ?, ?, ?)`,
				rec.CardName, nullFloat(rec.Price), rec.ScrapedAt.UTC().Format(SQLiteTimeLayout), rec.URL, rec.ItemCount)
		}
		return err
	})
	if err != nil {
		return 0, perrors.NewStore("insert price record", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, perrors.NewStore("read inserted id", err)
	}
	s.log.Debug().Int64("id", id).Str("card_name", rec.CardName).Msg("Inserted price record")
	return id, nil
}

// Latest returns the most recent record whose card name contains key
func (s *SQLiteStore) Latest(ctx context.Context, key string) (PriceRecord, error) {
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
func (s *SQLiteStore) History(ctx context.Context, key string, limit int) ([]PriceRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	var records []PriceRecord
	err := retryOnBusy(ctx, s.log, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, sqliteSelect, key, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanSQLite(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, perrors.NewStore("query price records", err)
	}
	return records, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanSQLite(rows *sql.Rows) (PriceRecord, error) {
	var (
		rec       PriceRecord
		price     sql.NullFloat64
		scrapedAt sql.NullString
		url       sql.NullString
		itemCount sql.NullInt64
	)
	if err := rows.Scan(&rec.ID, &rec.CardName, &price, &scrapedAt, &url, &itemCount); err != nil {
		return PriceRecord{}, err
	}
	if price.Valid {
		rec.Price = &price.Float64
	}
	if scrapedAt.Valid {
		ts, err := time.ParseInLocation(SQLiteTimeLayout, scrapedAt.String, time.UTC)
		if err != nil {
			return PriceRecord{}, perrors.NewParsing("store", fmt.Sprintf("parse scraped_at %q", scrapedAt.String), err)
		}
		rec.ScrapedAt = ts
	}
	rec.URL = url.String
	rec.ItemCount = int(itemCount.Int64)
	return rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs op, retrying with backoff while the database is locked
func retryOnBusy(ctx context.Context, log *logger.Logger, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		log.Debug().
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("Database busy, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
