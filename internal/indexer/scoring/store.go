package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fetcharr/fetcharr/internal/database"
)

// ErrProfileNotFound is returned when a profile ID does not exist.
var ErrProfileNotFound = errors.New("scoring profile not found")

// Store provides read access to scoring profiles.
type Store interface {
	// GetProfile returns the profile with the given ID, or ErrProfileNotFound.
	GetProfile(ctx context.Context, id int64) (*Profile, error)
	// GetDefaultProfile returns the profile flagged as default, or the
	// built-in default when none is flagged.
	GetDefaultProfile(ctx context.Context) (*Profile, error)
	// ListProfiles returns all stored profiles ordered by name.
	ListProfiles(ctx context.Context) ([]*Profile, error)
	// SaveProfile inserts or updates a profile and returns its ID.
	SaveProfile(ctx context.Context, profile *Profile) (int64, error)
	// DeleteProfile removes a profile.
	DeleteProfile(ctx context.Context, id int64) error
}

// SQLStore persists scoring profiles in SQLite.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a profile store backed by the given database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

const profileColumns = `id, name, format_scores, resolution_order, min_score,
	upgrade_until_score, min_score_increment, upgrades_allowed, size_limits,
	allowed_protocols`

// GetProfile returns the profile with the given ID.
func (s *SQLStore) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM scoring_profiles WHERE id = ?`, id)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return profile, err
}

// GetDefaultProfile returns the stored default profile, falling back to the
// built-in default when the table holds none.
func (s *SQLStore) GetDefaultProfile(ctx context.Context) (*Profile, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM scoring_profiles WHERE is_default = 1 LIMIT 1`)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultProfile(), nil
	}
	return profile, err
}

// ListProfiles returns all stored profiles ordered by name.
func (s *SQLStore) ListProfiles(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+profileColumns+` FROM scoring_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

// SaveProfile inserts or updates a profile and returns its ID.
func (s *SQLStore) SaveProfile(ctx context.Context, profile *Profile) (int64, error) {
	formatScores, err := json.Marshal(profile.FormatScores)
	if err != nil {
		return 0, fmt.Errorf("failed to encode format scores: %w", err)
	}
	resolutionOrder, err := json.Marshal(profile.ResolutionOrder)
	if err != nil {
		return 0, fmt.Errorf("failed to encode resolution order: %w", err)
	}
	sizeLimits, err := json.Marshal(profile.SizeLimits)
	if err != nil {
		return 0, fmt.Errorf("failed to encode size limits: %w", err)
	}
	protocols, err := json.Marshal(profile.AllowedProtocols)
	if err != nil {
		return 0, fmt.Errorf("failed to encode protocols: %w", err)
	}

	if profile.ID == 0 {
		res, err := s.db.Conn().ExecContext(ctx,
			`INSERT INTO scoring_profiles (name, format_scores, resolution_order,
				min_score, upgrade_until_score, min_score_increment,
				upgrades_allowed, size_limits, allowed_protocols)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			profile.Name, string(formatScores), string(resolutionOrder),
			profile.MinScore, profile.UpgradeUntilScore, profile.MinScoreIncrement,
			profile.UpgradesAllowed, string(sizeLimits), string(protocols))
		if err != nil {
			return 0, fmt.Errorf("failed to insert profile: %w", err)
		}
		return res.LastInsertId()
	}

	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE scoring_profiles SET name = ?, format_scores = ?,
			resolution_order = ?, min_score = ?, upgrade_until_score = ?,
			min_score_increment = ?, upgrades_allowed = ?, size_limits = ?,
			allowed_protocols = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		profile.Name, string(formatScores), string(resolutionOrder),
		profile.MinScore, profile.UpgradeUntilScore, profile.MinScoreIncrement,
		profile.UpgradesAllowed, string(sizeLimits), string(protocols),
		profile.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrProfileNotFound
	}
	return profile.ID, nil
}

// DeleteProfile removes a profile.
func (s *SQLStore) DeleteProfile(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM scoring_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		profile         Profile
		formatScores    string
		resolutionOrder string
		sizeLimits      string
		protocols       string
	)
	err := row.Scan(&profile.ID, &profile.Name, &formatScores, &resolutionOrder,
		&profile.MinScore, &profile.UpgradeUntilScore, &profile.MinScoreIncrement,
		&profile.UpgradesAllowed, &sizeLimits, &protocols)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(formatScores), &profile.FormatScores); err != nil {
		return nil, fmt.Errorf("failed to decode format scores: %w", err)
	}
	if err := json.Unmarshal([]byte(resolutionOrder), &profile.ResolutionOrder); err != nil {
		return nil, fmt.Errorf("failed to decode resolution order: %w", err)
	}
	if err := json.Unmarshal([]byte(sizeLimits), &profile.SizeLimits); err != nil {
		return nil, fmt.Errorf("failed to decode size limits: %w", err)
	}
	if err := json.Unmarshal([]byte(protocols), &profile.AllowedProtocols); err != nil {
		return nil, fmt.Errorf("failed to decode protocols: %w", err)
	}

	return &profile, nil
}

var _ Store = (*SQLStore)(nil)
