package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

const mangaColumns = `id, sequence, title, cover_url, rating, status, genres, description, author, author_id, rank,
	views, likes, revenue, monthly_growth, created_at, updated_at, deleted_at`

// MangaRepository implements models.Repository[*models.Manga] for the catalog.
type MangaRepository struct {
	db *sql.DB
}

// NewMangaRepository creates a new MangaRepository with the given database connection
func NewMangaRepository(db *sql.DB) *MangaRepository {
	return &MangaRepository{db: db}
}

// Create inserts a new manga into the database with generated ID and sequence
func (r *MangaRepository) Create(manga *models.Manga) error {
	if err := manga.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "mangas")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	genres, err := encodeList(manga.Genres())
	if err != nil {
		return err
	}

	id := shared.GenerateID()
	stats := manga.Stats()

	query := `
		INSERT INTO mangas (id, sequence, title, cover_url, rating, status, genres, description, author, author_id, rank,
			views, likes, revenue, monthly_growth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id, sequence, manga.Title(), manga.CoverURL(), manga.Rating(), manga.Status(), genres, manga.Description(),
		manga.Author(), manga.AuthorID(), manga.Rank(),
		stats.Views, stats.Likes, stats.Revenue, stats.MonthlyGrowth,
		manga.CreatedAt(), manga.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert manga: %w", err)
	}

	manga.SetID(id)
	manga.SetSequence(sequence)
	return nil
}

// Get retrieves a manga by ID, excluding soft-deleted titles
func (r *MangaRepository) Get(id string) (*models.Manga, error) {
	query := `SELECT ` + mangaColumns + ` FROM mangas WHERE id = ? AND deleted_at IS NULL`

	manga, err := scanManga(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMangaNotFound, id)
	}
	return manga, err
}

// Update modifies an existing manga in the database
func (r *MangaRepository) Update(manga *models.Manga) error {
	if err := manga.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	genres, err := encodeList(manga.Genres())
	if err != nil {
		return err
	}

	now := time.Now()
	manga.SetUpdatedAt(now)
	stats := manga.Stats()

	query := `
		UPDATE mangas
		SET title = ?, cover_url = ?, rating = ?, status = ?, genres = ?, description = ?, author = ?, author_id = ?, rank = ?,
			views = ?, likes = ?, revenue = ?, monthly_growth = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		manga.Title(), manga.CoverURL(), manga.Rating(), manga.Status(), genres, manga.Description(),
		manga.Author(), manga.AuthorID(), manga.Rank(),
		stats.Views, stats.Likes, stats.Revenue, stats.MonthlyGrowth, now, manga.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update manga: %w", err)
	}
	return checkAffected(result, shared.ErrMangaNotFound, manga.ID())
}

// Delete soft-deletes a manga by ID
func (r *MangaRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE mangas SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete manga: %w", err)
	}
	return checkAffected(result, shared.ErrMangaNotFound, id)
}

// List retrieves catalog titles ordered by rank (unranked last).
//
// Supported criteria: "author_id" (string), "status" (string), "genre" (string, case-insensitive).
func (r *MangaRepository) List(criteria map[string]any) ([]*models.Manga, error) {
	query := `SELECT ` + mangaColumns + ` FROM mangas WHERE deleted_at IS NULL`
	args := []any{}

	if authorID, ok := criteria["author_id"].(string); ok && authorID != "" {
		query += " AND author_id = ?"
		args = append(args, authorID)
	}
	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY CASE WHEN rank = 0 THEN 1 ELSE 0 END, rank ASC, sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mangas: %w", err)
	}
	defer rows.Close()

	genre, _ := criteria["genre"].(string)

	var mangas []*models.Manga
	for rows.Next() {
		manga, err := scanManga(rows)
		if err != nil {
			return nil, err
		}
		if genre != "" && !manga.HasGenre(genre) {
			continue
		}
		mangas = append(mangas, manga)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mangas, nil
}

// Categories returns every distinct genre in the catalog, sorted.
func (r *MangaRepository) Categories() ([]string, error) {
	mangas, err := r.List(nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var genres []string
	for _, m := range mangas {
		for _, g := range m.Genres() {
			if key := strings.ToLower(g); !seen[key] {
				seen[key] = true
				genres = append(genres, g)
			}
		}
	}
	slices.Sort(genres)
	return genres, nil
}

func scanManga(s scanner) (*models.Manga, error) {
	var (
		id, title, coverURL, status, genresRaw, description, author, authorID string
		sequence, rank, views, likes                                          int
		rating, revenue, growth                                               float64
		createdAt, updatedAt                                                  time.Time
		deletedAt                                                             sql.NullTime
	)

	err := s.Scan(&id, &sequence, &title, &coverURL, &rating, &status, &genresRaw, &description, &author, &authorID, &rank,
		&views, &likes, &revenue, &growth, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan manga: %w", err)
	}

	genres, err := decodeList[string](genresRaw)
	if err != nil {
		return nil, fmt.Errorf("manga %s: %w", id, err)
	}

	manga := models.NewManga(sequence, title, author, authorID, genres)
	manga.SetID(id)
	manga.SetCoverURL(coverURL)
	manga.SetRating(rating)
	manga.SetStatus(status)
	manga.SetDescription(description)
	manga.SetRank(rank)
	manga.SetStats(models.MangaStats{Views: views, Likes: likes, Revenue: revenue, MonthlyGrowth: growth})
	manga.SetCreatedAt(createdAt)
	manga.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		manga.SetDeletedAt(&deletedAt.Time)
	}
	return manga, nil
}
