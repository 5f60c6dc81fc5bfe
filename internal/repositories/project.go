package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

const projectColumns = `id, sequence, title, subtitle, description, image_url, url, current_amount, goal_amount, backers,
	deadline, created_at, updated_at, deleted_at`

// ProjectRepository implements models.Repository[*models.Project] for crowdfunding campaigns.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository with the given database connection
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project into the database with generated ID and sequence
func (r *ProjectRepository) Create(project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "projects")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO projects (id, sequence, title, subtitle, description, image_url, url, current_amount, goal_amount, backers,
			deadline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		id, sequence, project.Title(), project.Subtitle(), project.Description(), project.ImageURL(), project.URL(),
		project.CurrentAmount(), project.GoalAmount(), project.Backers(), project.Deadline(),
		project.CreatedAt(), project.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	project.SetID(id)
	project.SetSequence(sequence)
	return nil
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ? AND deleted_at IS NULL`

	project, err := scanProject(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrProjectNotFound, id)
	}
	return project, err
}

// Update records pledges and campaign copy changes
func (r *ProjectRepository) Update(project *models.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	project.SetUpdatedAt(now)

	query := `
		UPDATE projects
		SET title = ?, subtitle = ?, description = ?, image_url = ?, url = ?, current_amount = ?, goal_amount = ?,
			backers = ?, deadline = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Exec(query,
		project.Title(), project.Subtitle(), project.Description(), project.ImageURL(), project.URL(),
		project.CurrentAmount(), project.GoalAmount(), project.Backers(), project.Deadline(), now, project.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return checkAffected(result, shared.ErrProjectNotFound, project.ID())
}

// Delete soft-deletes a project by ID
func (r *ProjectRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE projects SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return checkAffected(result, shared.ErrProjectNotFound, id)
}

// List retrieves all active projects, soonest deadline first.
func (r *ProjectRepository) List(criteria map[string]any) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE deleted_at IS NULL ORDER BY deadline ASC, sequence ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return projects, nil
}

func scanProject(s scanner) (*models.Project, error) {
	var (
		id, title, subtitle, description, imageURL, url string
		sequence, backers                               int
		current, goal                                   float64
		deadline, createdAt, updatedAt                  time.Time
		deletedAt                                       sql.NullTime
	)

	err := s.Scan(&id, &sequence, &title, &subtitle, &description, &imageURL, &url, &current, &goal, &backers,
		&deadline, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	project := models.NewProject(sequence, title, goal, deadline)
	project.SetID(id)
	project.SetSubtitle(subtitle)
	project.SetDescription(description)
	project.SetImageURL(imageURL)
	project.SetURL(url)
	project.SetCurrentAmount(current)
	project.SetBackers(backers)
	project.SetCreatedAt(createdAt)
	project.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		project.SetDeletedAt(&deletedAt.Time)
	}
	return project, nil
}
