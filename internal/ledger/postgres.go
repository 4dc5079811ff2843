package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_records (
    community_id  TEXT NOT NULL,
    user_id       TEXT NOT NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    lock_state    TEXT NOT NULL DEFAULT 'open',
    last_reason   TEXT,
    updated_at    TIMESTAMPTZ NOT NULL,
    locked_at     TIMESTAMPTZ,
    PRIMARY KEY (community_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_ledger_records_locked ON ledger_records (community_id, lock_state);
`

// PostgresRepository stores records in PostgreSQL. Update locks the row with
// SELECT ... FOR UPDATE so concurrent daemons serialize per key.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres connects with lib/pq, verifies the connection and ensures
// the ledger table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewPostgresRepository wraps an existing handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// EnsureSchema creates the ledger table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create postgres ledger schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func scanPostgresRecord(scanner rowScanner) (*Record, error) {
	var (
		rec        Record
		lockState  string
		lastReason sql.NullString
		lockedAt   sql.NullTime
	)
	if err := scanner.Scan(&rec.CommunityID, &rec.UserID, &rec.AttemptCount, &lockState, &lastReason, &rec.UpdatedAt, &lockedAt); err != nil {
		return nil, err
	}
	state, err := ParseLockState(lockState)
	if err != nil {
		return nil, err
	}
	rec.LockState = state
	rec.LastReason = Reason(lastReason.String)
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if lockedAt.Valid {
		rec.LockedAt = lockedAt.Time.UTC()
	}
	return &rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, key Key) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM ledger_records WHERE community_id = $1 AND user_id = $2",
		key.CommunityID, key.UserID)
	rec, err := scanPostgresRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Update(ctx context.Context, key Key, fn UpdateFunc) (*Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_records (community_id, user_id, attempt_count, lock_state, updated_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (community_id, user_id) DO NOTHING`,
		key.CommunityID, key.UserID, string(StateOpen), r.now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("seed ledger record: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM ledger_records WHERE community_id = $1 AND user_id = $2 FOR UPDATE",
		key.CommunityID, key.UserID)
	rec, err := scanPostgresRecord(row)
	if err != nil {
		return nil, fmt.Errorf("lock ledger record: %w", err)
	}

	if err := fn(rec); err != nil {
		return nil, err
	}

	var lockedAt sql.NullTime
	if !rec.LockedAt.IsZero() {
		lockedAt = sql.NullTime{Time: rec.LockedAt.UTC(), Valid: true}
	}
	var lastReason sql.NullString
	if rec.LastReason != ReasonNone {
		lastReason = sql.NullString{String: string(rec.LastReason), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger_records
		SET attempt_count = $3, lock_state = $4, last_reason = $5, updated_at = $6, locked_at = $7
		WHERE community_id = $1 AND user_id = $2`,
		key.CommunityID, key.UserID, rec.AttemptCount, string(rec.LockState), lastReason, rec.UpdatedAt.UTC(), lockedAt,
	); err != nil {
		return nil, fmt.Errorf("store ledger record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListLocked(ctx context.Context, communityID string) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM ledger_records WHERE community_id = $1 AND lock_state <> $2 ORDER BY locked_at, user_id",
		communityID, string(StateOpen))
	if err != nil {
		return nil, fmt.Errorf("list locked records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
