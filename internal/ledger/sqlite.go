package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/storage"
)

const recordColumns = "community_id, user_id, attempt_count, lock_state, last_reason, updated_at, locked_at"

// SQLiteRepository stores records in the shared warden database.
type SQLiteRepository struct {
	db *storage.DB
	// mu serializes read-modify-write cycles; SQLite allows one writer.
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRepository wraps an open database.
func NewSQLiteRepository(db *storage.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec        Record
		lockState  string
		lastReason sql.NullString
		updatedRaw string
		lockedRaw  sql.NullString
	)
	if err := scanner.Scan(&rec.CommunityID, &rec.UserID, &rec.AttemptCount, &lockState, &lastReason, &updatedRaw, &lockedRaw); err != nil {
		return nil, err
	}
	state, err := ParseLockState(lockState)
	if err != nil {
		return nil, err
	}
	rec.LockState = state
	rec.LastReason = Reason(lastReason.String)
	rec.UpdatedAt = storage.ParseTime(updatedRaw)
	rec.LockedAt = storage.ParseTime(lockedRaw.String)
	return &rec, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key Key) (*Record, error) {
	ctx = storage.EnsureContext(ctx)
	row := r.db.SQL().QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM ledger_records WHERE community_id = ? AND user_id = ?",
		key.CommunityID, key.UserID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, key Key, fn UpdateFunc) (*Record, error) {
	ctx = storage.EnsureContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *Record
	err := storage.RetryOnBusy(ctx, func() error {
		tx, err := r.db.SQL().BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin ledger tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			"SELECT "+recordColumns+" FROM ledger_records WHERE community_id = ? AND user_id = ?",
			key.CommunityID, key.UserID)
		rec, err := scanRecord(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			rec = NewRecord(key, r.now())
		case err != nil:
			return fmt.Errorf("load ledger record: %w", err)
		}

		if err := fn(rec); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_records (`+recordColumns+`)
            VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (community_id, user_id) DO UPDATE SET
                attempt_count = excluded.attempt_count,
                lock_state = excluded.lock_state,
                last_reason = excluded.last_reason,
                updated_at = excluded.updated_at,
                locked_at = excluded.locked_at`,
			rec.CommunityID, rec.UserID, rec.AttemptCount, string(rec.LockState),
			storage.NullableString(string(rec.LastReason)),
			storage.FormatTime(rec.UpdatedAt),
			storage.NullableTime(rec.LockedAt),
		); err != nil {
			return fmt.Errorf("store ledger record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit ledger record: %w", err)
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ListLocked(ctx context.Context, communityID string) ([]*Record, error) {
	ctx = storage.EnsureContext(ctx)
	rows, err := r.db.SQL().QueryContext(ctx,
		"SELECT "+recordColumns+" FROM ledger_records WHERE community_id = ? AND lock_state != ? ORDER BY locked_at, user_id",
		communityID, string(StateOpen))
	if err != nil {
		return nil, fmt.Errorf("list locked records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
