package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"

	"warden/internal/evidence"
	"warden/internal/services"
	"warden/internal/storage"
)

// ErrAlreadyResolved is returned when resolving a closed case.
var ErrAlreadyResolved = errors.New("review case already resolved")

// Case is the operator-facing record of one lockout.
type Case struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	CommunityID  string    `json:"community_id"`
	UserID       string    `json:"user_id"`
	Reason       string    `json:"reason"`
	ImageRef     string    `json:"image_ref"`
	ExtractedID  string    `json:"extracted_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ResolvedAt   time.Time `json:"resolved_at,omitzero"`
	ResolvedBy   string    `json:"resolved_by,omitempty"`
	Resolution   string    `json:"resolution,omitempty"`
}

// Resolved reports whether an operator closed the case.
func (c *Case) Resolved() bool {
	return c != nil && !c.ResolvedAt.IsZero()
}

// Member returns the community/user pair the case concerns.
func (c *Case) Member() evidence.Member {
	return evidence.Member{CommunityID: c.CommunityID, UserID: c.UserID}
}

// NewCase carries the fields supplied when a case is opened.
type NewCase struct {
	SubmissionID string
	Member       evidence.Member
	Reason       string
	ImageRef     string
	ExtractedID  string
	Detail       string
}

// Filter narrows List.
type Filter struct {
	CommunityID     string
	UserID          string
	IncludeResolved bool
}

type caseRow struct {
	ID           string         `db:"id"`
	SubmissionID string         `db:"submission_id"`
	CommunityID  string         `db:"community_id"`
	UserID       string         `db:"user_id"`
	Reason       string         `db:"reason"`
	ImageRef     string         `db:"image_ref"`
	ExtractedID  sql.NullString `db:"extracted_id"`
	Detail       sql.NullString `db:"detail"`
	CreatedAt    string         `db:"created_at"`
	ResolvedAt   sql.NullString `db:"resolved_at"`
	ResolvedBy   sql.NullString `db:"resolved_by"`
	Resolution   sql.NullString `db:"resolution"`
}

func (r caseRow) toCase() *Case {
	return &Case{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		CommunityID:  r.CommunityID,
		UserID:       r.UserID,
		Reason:       r.Reason,
		ImageRef:     r.ImageRef,
		ExtractedID:  r.ExtractedID.String,
		Detail:       r.Detail.String,
		CreatedAt:    storage.ParseTime(r.CreatedAt),
		ResolvedAt:   storage.ParseTime(r.ResolvedAt.String),
		ResolvedBy:   r.ResolvedBy.String,
		Resolution:   r.Resolution.String,
	}
}

const caseColumns = `id, submission_id, community_id, user_id, reason, image_ref,
    extracted_id, detail, created_at, resolved_at, resolved_by, resolution`

// Store persists review cases in the warden database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an open database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db.Sqlx(), now: time.Now}
}

// Open records a new case with a time-sortable id.
func (s *Store) Open(ctx context.Context, in NewCase) (*Case, error) {
	if err := in.Member.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "review", "open", "invalid member", err)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, services.Wrap(services.ErrValidation, "review", "open", "reason is required", nil)
	}
	ctx = storage.EnsureContext(ctx)
	now := s.now().UTC()
	row := caseRow{
		ID:           ksuid.New().String(),
		SubmissionID: in.SubmissionID,
		CommunityID:  in.Member.CommunityID,
		UserID:       in.Member.UserID,
		Reason:       in.Reason,
		ImageRef:     in.ImageRef,
		ExtractedID:  storage.NullableString(in.ExtractedID),
		Detail:       storage.NullableString(in.Detail),
		CreatedAt:    storage.FormatTime(now),
	}
	err := storage.RetryOnBusy(ctx, func() error {
		_, err := s.db.NamedExecContext(ctx, `INSERT INTO review_cases
            (id, submission_id, community_id, user_id, reason, image_ref, extracted_id, detail, created_at)
            VALUES (:id, :submission_id, :community_id, :user_id, :reason, :image_ref, :extracted_id, :detail, :created_at)`, row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert review case: %w", err)
	}
	return row.toCase(), nil
}

// Get returns nil, nil when the case does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Case, error) {
	var row caseRow
	err := s.db.GetContext(storage.EnsureContext(ctx), &row, "SELECT "+caseColumns+" FROM review_cases WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review case: %w", err)
	}
	return row.toCase(), nil
}

// List returns matching cases oldest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Case, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.CommunityID != "" {
		clauses = append(clauses, "community_id = ?")
		args = append(args, filter.CommunityID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if !filter.IncludeResolved {
		clauses = append(clauses, "resolved_at IS NULL")
	}
	query := "SELECT " + caseColumns + " FROM review_cases"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	var rows []caseRow
	if err := s.db.SelectContext(storage.EnsureContext(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	out := make([]*Case, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCase())
	}
	return out, nil
}

// Resolve closes one case.
func (s *Store) Resolve(ctx context.Context, id, actor, resolution string) (*Case, error) {
	ctx = storage.EnsureContext(ctx)
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, services.Wrap(services.ErrNotFound, "review", "resolve", fmt.Sprintf("case %s", id), nil)
	}
	if existing.Resolved() {
		return existing, ErrAlreadyResolved
	}
	now := s.now().UTC()
	err = storage.RetryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"UPDATE review_cases SET resolved_at = ?, resolved_by = ?, resolution = ? WHERE id = ? AND resolved_at IS NULL",
			storage.FormatTime(now), strings.TrimSpace(actor), strings.TrimSpace(resolution), id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve review case: %w", err)
	}
	existing.ResolvedAt = now
	existing.ResolvedBy = strings.TrimSpace(actor)
	existing.Resolution = strings.TrimSpace(resolution)
	return existing, nil
}

// ResolveOpenForMember closes every open case for member and returns how
// many were closed. Used when an operator unlocks the member directly.
func (s *Store) ResolveOpenForMember(ctx context.Context, member evidence.Member, actor, resolution string) (int, error) {
	ctx = storage.EnsureContext(ctx)
	var affected int64
	err := storage.RetryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE review_cases SET resolved_at = ?, resolved_by = ?, resolution = ? WHERE community_id = ? AND user_id = ? AND resolved_at IS NULL",
			storage.FormatTime(s.now().UTC()), strings.TrimSpace(actor), strings.TrimSpace(resolution), member.CommunityID, member.UserID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("resolve review cases for %s: %w", member, err)
	}
	return int(affected), nil
}
