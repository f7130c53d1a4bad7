package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/cognitive-hub/internal/skills"
)

// SkillsSchema creates the manifest table.
const SkillsSchema = `
CREATE TABLE IF NOT EXISTS skills (
    id               TEXT PRIMARY KEY,
    position         INTEGER NOT NULL DEFAULT 0,
    priority         INTEGER NOT NULL DEFAULT 0,
    speak            BOOLEAN NOT NULL DEFAULT FALSE,
    launch_asr       TEXT NOT NULL DEFAULT '',
    launch_nlu       TEXT NOT NULL DEFAULT '',
    service_url      TEXT NOT NULL DEFAULT '',
    service_auth_url TEXT NOT NULL DEFAULT '',
    service_path     TEXT NOT NULL DEFAULT '',
    enabled          BOOLEAN NOT NULL DEFAULT TRUE
)`

const selectSkills = `
SELECT id, priority, speak, launch_asr, launch_nlu,
       service_url, service_auth_url, service_path
FROM skills
WHERE enabled
ORDER BY position, id`

// DB is the subset of pgxpool.Pool used by SkillsSource.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SkillsSource reads the skills manifest from the skills table.
type SkillsSource struct {
	db DB
}

// NewSkillsSource creates a manifest source on db.
func NewSkillsSource(db DB) *SkillsSource {
	return &SkillsSource{db: db}
}

// EnsureSchema creates the skills table if it does not exist.
func (s *SkillsSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, SkillsSchema); err != nil {
		return fmt.Errorf("create skills table: %w", err)
	}
	return nil
}

// Manifest implements skills.Source. Enabled rows are returned in position
// order.
func (s *SkillsSource) Manifest(ctx context.Context) (skills.Manifest, error) {
	rows, err := s.db.Query(ctx, selectSkills)
	if err != nil {
		return skills.Manifest{}, fmt.Errorf("query skills: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanSkill)
	if err != nil {
		return skills.Manifest{}, fmt.Errorf("scan skills: %w", err)
	}
	return skills.Manifest{Skills: list}, nil
}

func scanSkill(row pgx.CollectableRow) (skills.SkillData, error) {
	var (
		data               skills.SkillData
		url, authURL, path string
	)
	err := row.Scan(
		&data.ID,
		&data.Priority,
		&data.Speak,
		&data.LaunchCriteria.ASR,
		&data.LaunchCriteria.NLU,
		&url,
		&authURL,
		&path,
	)
	if err != nil {
		return skills.SkillData{}, err
	}
	if url != "" || authURL != "" {
		data.Service = &skills.ServiceData{URL: url, AuthURL: authURL, Path: path}
	}
	return data, nil
}

var _ skills.Source = (*SkillsSource)(nil)
