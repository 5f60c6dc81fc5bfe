package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

const userColumns = `id, sequence, username, email, handle, avatar_url, password_hash, verified, author, tokens, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence.
//
// It is also the token ledger: balance changes go through single conditional UPDATE statements so concurrent consumers can never overdraw.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO users (id, sequence, username, email, handle, avatar_url, password_hash, verified, author, tokens, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id, sequence, user.Username(), user.Email(), user.Handle(), user.AvatarURL(), user.PasswordHash(),
		user.Verified(), user.IsAuthor(), user.Tokens(), user.CreatedAt(), user.UpdatedAt(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", shared.ErrUserExists, user.Email())
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	return user, err
}

// GetByEmail retrieves a user by (case-insensitive) email address
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? AND deleted_at IS NULL`

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := scanUser(r.db.QueryRow(query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, email)
	}
	return user, err
}

// Update modifies profile fields of an existing user.
//
// The token balance is not written here; use the ledger methods.
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET username = ?, email = ?, handle = ?, avatar_url = ?, password_hash = ?, verified = ?, author = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		user.Username(), user.Email(), user.Handle(), user.AvatarURL(), user.PasswordHash(),
		user.Verified(), user.IsAuthor(), now, user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkAffected(result, shared.ErrUserNotFound, user.ID())
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return checkAffected(result, shared.ErrUserNotFound, id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users.
//
// Supported criteria: "email" (string), "author" (bool).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, strings.ToLower(email))
	}
	if author, ok := criteria["author"].(bool); ok {
		query += " AND author = ?"
		args = append(args, author)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// Balance returns the current token balance of a user.
func (r *UserRepository) Balance(id string) (int, error) {
	var tokens int
	err := r.db.QueryRow(`SELECT tokens FROM users WHERE id = ? AND deleted_at IS NULL`, id).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query balance: %w", err)
	}
	return tokens, nil
}

// ConsumeToken decrements the balance by one and returns the remaining balance.
//
// The check and the decrement are a single statement, so a balance of n admits at most n successful calls.
// Returns [shared.ErrQuotaExhausted] when the balance is already zero.
func (r *UserRepository) ConsumeToken(id string) (int, error) {
	query := `
		UPDATE users SET tokens = tokens - 1, updated_at = ?
		WHERE id = ? AND tokens > 0 AND deleted_at IS NULL
		RETURNING tokens
	`

	var remaining int
	err := r.db.QueryRow(query, time.Now(), id).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		if _, berr := r.Balance(id); berr != nil {
			return 0, berr
		}
		return 0, shared.ErrQuotaExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume token: %w", err)
	}
	return remaining, nil
}

// RefundToken returns one token to the balance.
func (r *UserRepository) RefundToken(id string) (int, error) {
	return r.AddTokens(id, 1)
}

// AddTokens credits amount tokens and returns the new balance.
func (r *UserRepository) AddTokens(id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %d", shared.ErrInvalidArgument, amount)
	}

	query := `
		UPDATE users SET tokens = tokens + ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING tokens
	`

	var balance int
	err := r.db.QueryRow(query, amount, time.Now(), id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add tokens: %w", err)
	}
	return balance, nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		id, username, email, handle, avatarURL, passwordHash string
		sequence, tokens                                     int
		verified, author                                     bool
		createdAt, updatedAt                                 time.Time
		deletedAt                                            sql.NullTime
	)

	err := s.Scan(&id, &sequence, &username, &email, &handle, &avatarURL, &passwordHash,
		&verified, &author, &tokens, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, username, email, author)
	user.SetID(id)
	user.SetHandle(handle)
	user.SetAvatarURL(avatarURL)
	user.SetPasswordHash(passwordHash)
	user.SetVerified(verified)
	user.SetTokens(tokens)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}
	return user, nil
}
