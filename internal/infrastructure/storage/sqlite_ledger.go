// Package storage implements the dedup ledger on SQLite. All record
// operations are insert-or-ignore on a uniqueness constraint, so a race
// between two writers resolves to a logged no-op instead of an error.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
)

const migration = `
CREATE TABLE IF NOT EXISTS chat_targets (
	chat_id    INTEGER PRIMARY KEY,
	enabled    INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS processed_listings (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	exchange      TEXT NOT NULL,
	ticker        TEXT NOT NULL,
	first_seen_at TEXT NOT NULL DEFAULT (datetime('now')),
	notice_url    TEXT NOT NULL,
	notice_hash   TEXT,
	UNIQUE(exchange, ticker)
);

CREATE TABLE IF NOT EXISTS polled_notices (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	exchange   TEXT NOT NULL,
	notice_id  TEXT NOT NULL,
	notice_url TEXT NOT NULL,
	polled_at  TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE(exchange, notice_id)
);

CREATE INDEX IF NOT EXISTS idx_processed_listings_exchange_ticker
	ON processed_listings(exchange, ticker);

CREATE INDEX IF NOT EXISTS idx_polled_notices_exchange
	ON polled_notices(exchange);
`

// SQLiteLedger persists the three dedup domains in one SQLite database.
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens (creating directories as needed) the database at
// path, configures WAL mode, and applies the schema.
func NewSQLiteLedger(path string, logger *slog.Logger) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY between the two poll loops.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteLedger{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// IsListingProcessed reports whether (exchange, ticker) already produced an
// article.
func (l *SQLiteLedger) IsListingProcessed(ctx context.Context, exchange domain.Exchange, ticker string) (bool, error) {
	query, args, err := sq.Select("1").
		From("processed_listings").
		Where(sq.Eq{"exchange": string(exchange), "ticker": ticker}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	return l.exists(ctx, query, args)
}

// RecordProcessed inserts the processed-listing record. A uniqueness
// conflict (lost race) is logged and swallowed.
func (l *SQLiteLedger) RecordProcessed(ctx context.Context, listing domain.ProcessedListing) error {
	var hash any
	if listing.NoticeHash != "" {
		hash = listing.NoticeHash
	}

	query, args, err := sq.Insert("processed_listings").
		Columns("exchange", "ticker", "notice_url", "notice_hash").
		Values(string(listing.Exchange), listing.Ticker, listing.NoticeURL, hash).
		Suffix("ON CONFLICT(exchange, ticker) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert processed listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		l.debug("processed listing already recorded", "exchange", listing.Exchange, "ticker", listing.Ticker)
	}
	return nil
}

// IsNoticePolled reports whether the watcher already considered this notice.
func (l *SQLiteLedger) IsNoticePolled(ctx context.Context, exchange domain.Exchange, noticeID string) (bool, error) {
	query, args, err := sq.Select("1").
		From("polled_notices").
		Where(sq.Eq{"exchange": string(exchange), "notice_id": noticeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	return l.exists(ctx, query, args)
}

// RecordPolled marks the notice as considered, success or skip alike.
func (l *SQLiteLedger) RecordPolled(ctx context.Context, exchange domain.Exchange, noticeID, url string) error {
	query, args, err := sq.Insert("polled_notices").
		Columns("exchange", "notice_id", "notice_url").
		Values(string(exchange), noticeID, url).
		Suffix("ON CONFLICT(exchange, notice_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert polled notice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		l.debug("notice already recorded as polled", "exchange", exchange, "noticeId", noticeID)
	}
	return nil
}

// HasAnyPolled detects a cold start: an empty polled ledger for the source.
func (l *SQLiteLedger) HasAnyPolled(ctx context.Context, exchange domain.Exchange) (bool, error) {
	query, args, err := sq.Select("1").
		From("polled_notices").
		Where(sq.Eq{"exchange": string(exchange)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	return l.exists(ctx, query, args)
}

// SetTargetEnabled upserts the enablement flag for a chat target.
func (l *SQLiteLedger) SetTargetEnabled(ctx context.Context, chatID int64, enabled bool) error {
	flag := 0
	if enabled {
		flag = 1
	}

	query, args, err := sq.Insert("chat_targets").
		Columns("chat_id", "enabled", "updated_at").
		Values(chatID, flag, time.Now().UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT(chat_id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert chat target: %w", err)
	}
	return nil
}

// TargetEnabled returns the flag for one chat; unknown chats are disabled.
func (l *SQLiteLedger) TargetEnabled(ctx context.Context, chatID int64) (bool, error) {
	query, args, err := sq.Select("enabled").
		From("chat_targets").
		Where(sq.Eq{"chat_id": chatID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var enabled int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query chat target: %w", err)
	}
	return enabled == 1, nil
}

// EnabledTargets lists every currently-enabled delivery destination.
func (l *SQLiteLedger) EnabledTargets(ctx context.Context) ([]domain.ChatTarget, error) {
	query, args, err := sq.Select("chat_id", "updated_at").
		From("chat_targets").
		Where(sq.Eq{"enabled": 1}).
		OrderBy("chat_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enabled targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.ChatTarget
	for rows.Next() {
		var target domain.ChatTarget
		var updatedAt string
		if err := rows.Scan(&target.ChatID, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan chat target: %w", err)
		}
		target.Enabled = true
		if parsed, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			target.UpdatedAt = parsed
		}
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return targets, nil
}

// AnyTargetEnabled gates the poll cycle: with nothing enabled there is no
// point fetching the feeds.
func (l *SQLiteLedger) AnyTargetEnabled(ctx context.Context) (bool, error) {
	query, args, err := sq.Select("1").
		From("chat_targets").
		Where(sq.Eq{"enabled": 1}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	return l.exists(ctx, query, args)
}

func (l *SQLiteLedger) exists(ctx context.Context, query string, args []any) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query existence: %w", err)
	}
	return true, nil
}

func (l *SQLiteLedger) debug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}
