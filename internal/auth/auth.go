// Package auth manages the signed-in account of the reader and its AI token ledger.
//
// The signed-in user id is persisted as a small JSON session file so consecutive CLI invocations share one identity.
// The token balance itself always lives in the database; [Manager] never caches it.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

const minPasswordLength = 6

// UserStore persists accounts and their token balances.
//
// Implemented by repositories.UserRepository.
type UserStore interface {
	Create(user *models.User) error
	Get(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Balance(id string) (int, error)
	ConsumeToken(id string) (int, error)
	RefundToken(id string) (int, error)
	AddTokens(id string, amount int) (int, error)
}

// SessionFile is the on-disk record of who is signed in.
type SessionFile struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	SignedInAt time.Time `json:"signed_in_at"`
}

// Manager signs users in and out and fronts the token ledger for the signed-in user.
type Manager struct {
	mu          sync.Mutex
	users       UserStore
	sessionPath string
	cost        int
	logger      *log.Logger
	current     *models.User
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	SessionPath string // empty keeps the session in memory only
	HashCost    int    // bcrypt cost, defaults to [bcrypt.DefaultCost]
	Logger      *log.Logger
}

// NewManager creates an anonymous [Manager]. Call [Manager.Restore] to pick up a persisted session.
func NewManager(users UserStore, opts ManagerOpts) *Manager {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Manager{users: users, sessionPath: opts.SessionPath, cost: opts.HashCost, logger: opts.Logger}
}

// Register creates an account with the welcome token balance and signs it in.
func (m *Manager) Register(username, email, password string, author bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", shared.ErrMissingArgument)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", shared.ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(0, username, email, author)
	user.SetPasswordHash(string(hash))
	if err := m.users.Create(user); err != nil {
		return nil, err
	}

	m.logger.Info("account registered", "user", user.ID(), "author", author, "tokens", user.Tokens())
	if err := m.signIn(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and signs the account in. The token balance is left as it is.
func (m *Manager) Login(email, password string) (*models.User, error) {
	user, err := m.users.GetByEmail(email)
	if errors.Is(err, shared.ErrUserNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash()), []byte(password)); err != nil {
		m.logger.Warn("login rejected", "email", user.Email())
		return nil, shared.ErrInvalidCredentials
	}

	if err := m.signIn(user); err != nil {
		return nil, err
	}
	m.logger.Info("signed in", "user", user.ID())
	return user, nil
}

func (m *Manager) signIn(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = user
	if m.sessionPath == "" {
		return nil
	}

	data, err := shared.MarshalJSON(SessionFile{UserID: user.ID(), Email: user.Email(), SignedInAt: time.Now().UTC()}, true)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if dir := filepath.Dir(m.sessionPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	if err := os.WriteFile(m.sessionPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Logout forgets the signed-in account and removes the session file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	if m.sessionPath == "" {
		return nil
	}
	if err := os.Remove(m.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Restore signs in the account recorded in the session file.
//
// A missing session file leaves the manager anonymous. A session naming a deleted account is discarded.
func (m *Manager) Restore() error {
	if m.sessionPath == "" {
		return nil
	}

	data, err := os.ReadFile(m.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	var session SessionFile
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("%w: corrupt session file %s: %w", shared.ErrInvalidInput, m.sessionPath, err)
	}
	if session.UserID == "" {
		return m.Logout()
	}

	user, err := m.users.Get(session.UserID)
	if errors.Is(err, shared.ErrUserNotFound) {
		m.logger.Warn("discarding session for missing account", "user", session.UserID)
		return m.Logout()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = user
	m.mu.Unlock()
	m.logger.Debug("session restored", "user", user.ID())
	return nil
}

func (m *Manager) currentID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", shared.ErrUnauthorized
	}
	return m.current.ID(), nil
}

// IsAuthenticated reports whether an account is signed in.
func (m *Manager) IsAuthenticated() bool {
	_, err := m.currentID()
	return err == nil
}

// CurrentUser reloads the signed-in account so its balance is current.
func (m *Manager) CurrentUser() (*models.User, error) {
	id, err := m.currentID()
	if err != nil {
		return nil, err
	}
	return m.users.Get(id)
}

// RequireAuthor returns the signed-in account, failing with [shared.ErrNotAuthor] for readers.
func (m *Manager) RequireAuthor() (*models.User, error) {
	user, err := m.CurrentUser()
	if err != nil {
		return nil, err
	}
	if !user.IsAuthor() {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotAuthor, user.Handle())
	}
	return user, nil
}

// TokenBalance returns the AI token balance of the signed-in account.
func (m *Manager) TokenBalance() (int, error) {
	id, err := m.currentID()
	if err != nil {
		return 0, err
	}
	return m.users.Balance(id)
}

// ConsumeToken spends one token of the signed-in account.
func (m *Manager) ConsumeToken() (int, error) {
	id, err := m.currentID()
	if err != nil {
		return 0, err
	}
	remaining, err := m.users.ConsumeToken(id)
	if err != nil {
		return 0, err
	}
	m.logger.Debug("token consumed", "user", id, "remaining", remaining)
	return remaining, nil
}

// RefundToken gives one token back to the signed-in account.
func (m *Manager) RefundToken() (int, error) {
	id, err := m.currentID()
	if err != nil {
		return 0, err
	}
	return m.users.RefundToken(id)
}

// AddTokens credits amount tokens to the signed-in account.
func (m *Manager) AddTokens(amount int) (int, error) {
	id, err := m.currentID()
	if err != nil {
		return 0, err
	}
	balance, err := m.users.AddTokens(id, amount)
	if err != nil {
		return 0, err
	}
	m.logger.Info("tokens added", "user", id, "amount", amount, "balance", balance)
	return balance, nil
}
