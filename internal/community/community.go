package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"warden/internal/services"
	"warden/internal/storage"
)

// Settings is the per-community verification configuration.
type Settings struct {
	CommunityID     string    `json:"community_id"`
	PrivilegeID     string    `json:"privilege_id"`
	ReviewChannelID string    `json:"review_channel_id,omitempty"`
	Enabled         bool      `json:"enabled"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

// Configured reports whether verification can grant anything here.
func (s *Settings) Configured() bool {
	return s != nil && s.Enabled && strings.TrimSpace(s.PrivilegeID) != ""
}

// Check returns a configuration error describing why the community cannot
// verify members, or nil.
func (s *Settings) Check(communityID string) error {
	switch {
	case s == nil:
		return services.Wrap(services.ErrConfiguration, "community", "settings", fmt.Sprintf("community %s has no settings", communityID), nil)
	case !s.Enabled:
		return services.Wrap(services.ErrConfiguration, "community", "settings", fmt.Sprintf("verification disabled in community %s", communityID), nil)
	case strings.TrimSpace(s.PrivilegeID) == "":
		return services.Wrap(services.ErrConfiguration, "community", "settings", fmt.Sprintf("community %s has no privilege mapping", communityID), nil)
	}
	return nil
}

// Update is a partial change; nil fields are left alone.
type Update struct {
	PrivilegeID     *string `json:"privilege_id,omitempty"`
	ReviewChannelID *string `json:"review_channel_id,omitempty"`
	Enabled         *bool   `json:"enabled,omitempty"`
}

type settingsRow struct {
	CommunityID     string         `db:"community_id"`
	PrivilegeID     sql.NullString `db:"privilege_id"`
	ReviewChannelID sql.NullString `db:"review_channel_id"`
	Enabled         bool           `db:"enabled"`
	UpdatedAt       string         `db:"updated_at"`
}

func (r settingsRow) toSettings() *Settings {
	return &Settings{
		CommunityID:     r.CommunityID,
		PrivilegeID:     r.PrivilegeID.String,
		ReviewChannelID: r.ReviewChannelID.String,
		Enabled:         r.Enabled,
		UpdatedAt:       storage.ParseTime(r.UpdatedAt),
	}
}

const settingsColumns = "community_id, privilege_id, review_channel_id, enabled, updated_at"

// Store persists community settings.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an open database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db.Sqlx(), now: time.Now}
}

// Get returns nil, nil for an unknown community.
func (s *Store) Get(ctx context.Context, communityID string) (*Settings, error) {
	var row settingsRow
	err := s.db.GetContext(storage.EnsureContext(ctx), &row,
		"SELECT "+settingsColumns+" FROM community_settings WHERE community_id = ?", communityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get community settings: %w", err)
	}
	return row.toSettings(), nil
}

// List returns all communities ordered by id.
func (s *Store) List(ctx context.Context) ([]*Settings, error) {
	var rows []settingsRow
	if err := s.db.SelectContext(storage.EnsureContext(ctx), &rows,
		"SELECT "+settingsColumns+" FROM community_settings ORDER BY community_id"); err != nil {
		return nil, fmt.Errorf("list community settings: %w", err)
	}
	out := make([]*Settings, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toSettings())
	}
	return out, nil
}

// Put replaces the settings for settings.CommunityID.
func (s *Store) Put(ctx context.Context, settings Settings) (*Settings, error) {
	settings.CommunityID = strings.TrimSpace(settings.CommunityID)
	if settings.CommunityID == "" {
		return nil, services.Wrap(services.ErrValidation, "community", "put", "community id is required", nil)
	}
	settings.PrivilegeID = strings.TrimSpace(settings.PrivilegeID)
	settings.ReviewChannelID = strings.TrimSpace(settings.ReviewChannelID)
	settings.UpdatedAt = s.now().UTC()

	row := settingsRow{
		CommunityID:     settings.CommunityID,
		PrivilegeID:     storage.NullableString(settings.PrivilegeID),
		ReviewChannelID: storage.NullableString(settings.ReviewChannelID),
		Enabled:         settings.Enabled,
		UpdatedAt:       storage.FormatTime(settings.UpdatedAt),
	}
	ctx = storage.EnsureContext(ctx)
	err := storage.RetryOnBusy(ctx, func() error {
		_, err := s.db.NamedExecContext(ctx, `INSERT INTO community_settings (`+settingsColumns+`)
            VALUES (:community_id, :privilege_id, :review_channel_id, :enabled, :updated_at)
            ON CONFLICT (community_id) DO UPDATE SET
                privilege_id = excluded.privilege_id,
                review_channel_id = excluded.review_channel_id,
                enabled = excluded.enabled,
                updated_at = excluded.updated_at`, row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store community settings: %w", err)
	}
	return &settings, nil
}

// Apply merges update into the stored settings. A community without a row
// starts enabled with no privilege mapping.
func (s *Store) Apply(ctx context.Context, communityID string, update Update) (*Settings, error) {
	current, err := s.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = &Settings{CommunityID: communityID, Enabled: true}
	}
	if update.PrivilegeID != nil {
		current.PrivilegeID = *update.PrivilegeID
	}
	if update.ReviewChannelID != nil {
		current.ReviewChannelID = *update.ReviewChannelID
	}
	if update.Enabled != nil {
		current.Enabled = *update.Enabled
	}
	return s.Put(ctx, *current)
}
