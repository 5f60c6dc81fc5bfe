package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// ScriptRepository persists generated narration playlists, one per chapter and language.
type ScriptRepository struct {
	db *sql.DB
}

// NewScriptRepository creates a new ScriptRepository with the given database connection
func NewScriptRepository(db *sql.DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

// Get returns the stored playlist for a chapter in lang.
//
// Returns [shared.ErrScriptNotFound] when none has been generated.
func (r *ScriptRepository) Get(chapterID string, lang models.Language) ([]models.AudioSegment, error) {
	var raw string
	err := r.db.QueryRow(
		`SELECT segments FROM audio_scripts WHERE chapter_id = ? AND language = ?`,
		chapterID, string(lang),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", shared.ErrScriptNotFound, chapterID, lang)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query script: %w", err)
	}

	return decodeList[models.AudioSegment](raw)
}

// Save stores segments for a chapter in lang, replacing any previous playlist.
func (r *ScriptRepository) Save(chapterID string, lang models.Language, segments []models.AudioSegment) error {
	if chapterID == "" {
		return fmt.Errorf("%w: chapter id is required", shared.ErrInvalidArgument)
	}

	raw, err := encodeList(segments)
	if err != nil {
		return err
	}

	sequence, err := NextSequence(r.db, "audio_scripts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO audio_scripts (id, sequence, chapter_id, language, segments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chapter_id, language) DO UPDATE SET segments = excluded.segments, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, shared.GenerateID(), sequence, chapterID, string(lang), raw, now, now); err != nil {
		return fmt.Errorf("failed to save script: %w", err)
	}
	return nil
}

// Delete removes the playlist for a chapter in lang.
func (r *ScriptRepository) Delete(chapterID string, lang models.Language) error {
	result, err := r.db.Exec(`DELETE FROM audio_scripts WHERE chapter_id = ? AND language = ?`, chapterID, string(lang))
	if err != nil {
		return fmt.Errorf("failed to delete script: %w", err)
	}
	return checkAffected(result, shared.ErrScriptNotFound, chapterID)
}

// Languages lists the languages a chapter already has narration for.
func (r *ScriptRepository) Languages(chapterID string) ([]models.Language, error) {
	rows, err := r.db.Query(`SELECT language FROM audio_scripts WHERE chapter_id = ? ORDER BY language`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query script languages: %w", err)
	}
	defer rows.Close()

	var langs []models.Language
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		langs = append(langs, models.Language(l))
	}
	return langs, rows.Err()
}
