package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// ChapterRepository implements models.Repository[*models.Chapter].
//
// Page references are kept in order as a JSON array.
type ChapterRepository struct {
	db *sql.DB
}

// NewChapterRepository creates a new ChapterRepository with the given database connection
func NewChapterRepository(db *sql.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// Create inserts a new chapter into the database with generated ID and sequence
func (r *ChapterRepository) Create(chapter *models.Chapter) error {
	if err := chapter.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "chapters")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	pages, err := encodeList(chapter.Pages())
	if err != nil {
		return err
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO chapters (id, sequence, manga_id, title, pages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, id, sequence, chapter.MangaID(), chapter.Title(), pages, chapter.CreatedAt(), chapter.UpdatedAt()); err != nil {
		return fmt.Errorf("failed to insert chapter: %w", err)
	}

	chapter.SetID(id)
	chapter.SetSequence(sequence)
	return nil
}

// Get retrieves a chapter by ID
func (r *ChapterRepository) Get(id string) (*models.Chapter, error) {
	query := `
		SELECT id, sequence, manga_id, title, pages, created_at, updated_at, deleted_at
		FROM chapters
		WHERE id = ? AND deleted_at IS NULL
	`

	chapter, err := scanChapter(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrChapterNotFound, id)
	}
	return chapter, err
}

// Update rewrites the chapter title and pages
func (r *ChapterRepository) Update(chapter *models.Chapter) error {
	if err := chapter.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	pages, err := encodeList(chapter.Pages())
	if err != nil {
		return err
	}

	now := time.Now()
	chapter.SetUpdatedAt(now)

	result, err := r.db.Exec(
		`UPDATE chapters SET title = ?, pages = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		chapter.Title(), pages, now, chapter.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update chapter: %w", err)
	}
	return checkAffected(result, shared.ErrChapterNotFound, chapter.ID())
}

// Delete soft-deletes a chapter by ID
func (r *ChapterRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE chapters SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	return checkAffected(result, shared.ErrChapterNotFound, id)
}

// List retrieves chapters in reading order.
//
// Supported criteria: "manga_id" (string).
func (r *ChapterRepository) List(criteria map[string]any) ([]*models.Chapter, error) {
	query := `
		SELECT id, sequence, manga_id, title, pages, created_at, updated_at, deleted_at
		FROM chapters
		WHERE deleted_at IS NULL
	`
	args := []any{}

	if mangaID, ok := criteria["manga_id"].(string); ok && mangaID != "" {
		query += " AND manga_id = ?"
		args = append(args, mangaID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*models.Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, chapter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chapters, nil
}

func scanChapter(s scanner) (*models.Chapter, error) {
	var (
		id, mangaID, title, pagesRaw string
		sequence                     int
		createdAt, updatedAt         time.Time
		deletedAt                    sql.NullTime
	)

	err := s.Scan(&id, &sequence, &mangaID, &title, &pagesRaw, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chapter: %w", err)
	}

	pages, err := decodeList[string](pagesRaw)
	if err != nil {
		return nil, fmt.Errorf("chapter %s: %w", id, err)
	}

	chapter := models.NewChapter(sequence, mangaID, title, pages)
	chapter.SetID(id)
	chapter.SetCreatedAt(createdAt)
	chapter.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		chapter.SetDeletedAt(&deletedAt.Time)
	}
	return chapter, nil
}
