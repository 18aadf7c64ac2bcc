package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the ledger operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordRedemption inserts r unless its code is already recorded.
	// It reports whether a row was written; a duplicate is not an error.
	RecordRedemption(ctx context.Context, r *Redemption) (bool, error)

	// Exists reports whether code has been recorded.
	Exists(ctx context.Context, code string) (bool, error)

	// BumpStats adds one redemption worth amount to the account's counters,
	// creating them on first use.
	BumpStats(ctx context.Context, accountID, botKind string, amount float64, currency string) error

	// GetStats returns the counters for accountID, or for every account ordered
	// by count descending when accountID is empty.
	GetStats(ctx context.Context, accountID string) ([]AccountStats, error)

	// GetAggregate summarises the counters per bot kind.
	GetAggregate(ctx context.Context) (map[string]KindAggregate, error)

	// CountRedemptions returns the number of ledger entries.
	CountRedemptions(ctx context.Context) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by db.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordRedemption inserts a ledger entry with insert-if-absent semantics.
func (s *sqlxStore) RecordRedemption(ctx context.Context, r *Redemption) (bool, error) {
	if r == nil {
		return false, errors.New("cannot record nil redemption")
	}
	if r.CheckCode == "" {
		return false, errors.New("redemption must have a check code")
	}
	if r.ActivatedAt.IsZero() {
		r.ActivatedAt = s.now()
	}
	if r.Status == "" {
		r.Status = StatusActivated
	}
	if r.Currency == "" {
		r.Currency = "UNKNOWN"
	}

	query := `
        INSERT OR IGNORE INTO checks
            (check_code, bot_kind, amount, currency, activated_by, source_chat, message_id, activated_at, status)
        VALUES
            (:check_code, :bot_kind, :amount, :currency, :activated_by, :source_chat, :message_id, :activated_at, :status);
    `
	result, err := s.db.NamedExecContext(ctx, query, r)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording redemption", "code", r.CheckCode, "error", err)
		return false, fmt.Errorf("failed to record redemption %q: %w", r.CheckCode, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		s.logger.DebugContext(ctx, "Redemption already recorded", "code", r.CheckCode)
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		r.ID = id
	}
	return true, nil
}

// Exists reports whether code is in the ledger.
func (s *sqlxStore) Exists(ctx context.Context, code string) (bool, error) {
	var found int
	err := s.db.GetContext(ctx, &found, `SELECT 1 FROM checks WHERE check_code = ? LIMIT 1;`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up code %q: %w", code, err)
	}
	return true, nil
}

// BumpStats creates the counter row if absent and then increments it, in one transaction.
func (s *sqlxStore) BumpStats(ctx context.Context, accountID, botKind string, amount float64, currency string) error {
	if accountID == "" || botKind == "" {
		return errors.New("stats require an account and a bot kind")
	}
	now := s.now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	_, err = tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO stats (account_id, bot_kind, checks_count, total_amount, currency, last_updated)
        VALUES (?, ?, 0, 0, ?, ?);
    `, accountID, botKind, currency, now)
	if err != nil {
		return fmt.Errorf("failed to create stats row for %s/%s: %w", accountID, botKind, err)
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE stats
        SET checks_count = checks_count + 1,
            total_amount = total_amount + ?,
            currency = ?,
            last_updated = ?
        WHERE account_id = ? AND bot_kind = ?;
    `, amount, currency, now, accountID, botKind)
	if err != nil {
		return fmt.Errorf("failed to update stats for %s/%s: %w", accountID, botKind, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats for %s/%s: %w", accountID, botKind, err)
	}
	return nil
}

// GetStats returns per-account counters.
func (s *sqlxStore) GetStats(ctx context.Context, accountID string) ([]AccountStats, error) {
	var (
		stats []AccountStats
		err   error
	)
	if accountID != "" {
		err = s.db.SelectContext(ctx, &stats, `
            SELECT id, account_id, bot_kind, checks_count, total_amount, currency, last_updated
            FROM stats WHERE account_id = ? ORDER BY bot_kind;
        `, accountID)
	} else {
		err = s.db.SelectContext(ctx, &stats, `
            SELECT id, account_id, bot_kind, checks_count, total_amount, currency, last_updated
            FROM stats ORDER BY checks_count DESC, account_id;
        `)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// GetAggregate groups the counters by bot kind.
func (s *sqlxStore) GetAggregate(ctx context.Context) (map[string]KindAggregate, error) {
	var rows []KindAggregate
	err := s.db.SelectContext(ctx, &rows, `
        SELECT bot_kind,
               COALESCE(SUM(checks_count), 0) AS total_count,
               COALESCE(SUM(total_amount), 0) AS total_amount,
               COUNT(DISTINCT account_id) AS unique_accounts
        FROM stats
        GROUP BY bot_kind;
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	out := make(map[string]KindAggregate, len(rows))
	for _, r := range rows {
		out[r.BotKind] = r
	}
	return out, nil
}

// CountRedemptions returns the number of ledger entries.
func (s *sqlxStore) CountRedemptions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM checks;`); err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return n, nil
}

// RunSQLMaintenance executes VACUUM on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context done before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")
	start := time.Now()

	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed", "duration", time.Since(start))
	return nil
}
