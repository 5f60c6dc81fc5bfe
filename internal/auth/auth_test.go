package auth

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/repositories"
	"github.com/desertthunder/aleerpe/internal/shared"
)

func newTestManager(t *testing.T, sessionPath string) (*Manager, *repositories.UserRepository) {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	shared.ConfigureDatabase(db, 1, 1)
	require.NoError(t, shared.RunMigrations(db))
	t.Cleanup(func() { db.Close() })

	users := repositories.NewUserRepository(db)
	m := NewManager(users, ManagerOpts{
		SessionPath: sessionPath,
		HashCost:    bcrypt.MinCost,
		Logger:      shared.NewLogger(io.Discard),
	})
	return m, users
}

func TestRegister(t *testing.T) {
	t.Run("grants welcome tokens and signs in", func(t *testing.T) {
		m, _ := newTestManager(t, "")

		user, err := m.Register("Dokja", "Dokja@Example.com", "omniscient", false)
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID())
		assert.Equal(t, "dokja@example.com", user.Email())
		assert.NotEqual(t, "omniscient", user.PasswordHash())

		assert.True(t, m.IsAuthenticated())
		balance, err := m.TokenBalance()
		require.NoError(t, err)
		assert.Equal(t, models.WelcomeTokens, balance)
	})

	t.Run("duplicate email", func(t *testing.T) {
		m, _ := newTestManager(t, "")
		_, err := m.Register("a", "a@example.com", "secret1", false)
		require.NoError(t, err)

		_, err = m.Register("b", "a@example.com", "secret2", false)
		require.ErrorIs(t, err, shared.ErrUserExists)
	})

	t.Run("input validation", func(t *testing.T) {
		m, _ := newTestManager(t, "")

		_, err := m.Register(" ", "a@example.com", "secret1", false)
		require.ErrorIs(t, err, shared.ErrMissingArgument)

		_, err = m.Register("a", "a@example.com", "short", false)
		require.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = m.Register("a", "not-an-email", "secret1", false)
		require.Error(t, err)
		assert.False(t, m.IsAuthenticated())
	})
}

func TestLogin(t *testing.T) {
	m, _ := newTestManager(t, "")
	_, err := m.Register("Sooyoung", "han@example.com", "ending-writer", true)
	require.NoError(t, err)
	_, err = m.ConsumeToken()
	require.NoError(t, err)
	require.NoError(t, m.Logout())
	assert.False(t, m.IsAuthenticated())

	t.Run("wrong password", func(t *testing.T) {
		_, err := m.Login("han@example.com", "wrong-password")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		assert.False(t, m.IsAuthenticated())
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := m.Login("nobody@example.com", "ending-writer")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	})

	t.Run("keeps the balance", func(t *testing.T) {
		user, err := m.Login("HAN@example.com", "ending-writer")
		require.NoError(t, err)
		assert.True(t, user.IsAuthor())

		balance, err := m.TokenBalance()
		require.NoError(t, err)
		assert.Equal(t, models.WelcomeTokens-1, balance)
	})
}

func TestSessionPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	m, users := newTestManager(t, path)

	user, err := m.Register("Joonghyuk", "yoo@example.com", "regression", false)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	t.Run("restore picks up the account", func(t *testing.T) {
		other := NewManager(users, ManagerOpts{SessionPath: path, Logger: shared.NewLogger(io.Discard)})
		require.NoError(t, other.Restore())
		require.True(t, other.IsAuthenticated())

		current, err := other.CurrentUser()
		require.NoError(t, err)
		assert.Equal(t, user.ID(), current.ID())
	})

	t.Run("missing file stays anonymous", func(t *testing.T) {
		other := NewManager(users, ManagerOpts{SessionPath: filepath.Join(t.TempDir(), "none.json"), Logger: shared.NewLogger(io.Discard)})
		require.NoError(t, other.Restore())
		assert.False(t, other.IsAuthenticated())
	})

	t.Run("corrupt file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))

		other := NewManager(users, ManagerOpts{SessionPath: bad, Logger: shared.NewLogger(io.Discard)})
		require.ErrorIs(t, other.Restore(), shared.ErrInvalidInput)
		assert.False(t, other.IsAuthenticated())
	})

	t.Run("deleted account is discarded", func(t *testing.T) {
		ghost := filepath.Join(t.TempDir(), "ghost.json")
		data, err := shared.MarshalJSON(SessionFile{UserID: "missing"}, false)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(ghost, data, 0o600))

		other := NewManager(users, ManagerOpts{SessionPath: ghost, Logger: shared.NewLogger(io.Discard)})
		require.NoError(t, other.Restore())
		assert.False(t, other.IsAuthenticated())
		_, err = os.Stat(ghost)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("logout removes the file", func(t *testing.T) {
		require.NoError(t, m.Logout())
		_, err := os.Stat(path)
		assert.ErrorIs(t, err, os.ErrNotExist)
		require.NoError(t, m.Logout())
	})
}

func TestLedger(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		m, _ := newTestManager(t, "")

		_, err := m.TokenBalance()
		require.ErrorIs(t, err, shared.ErrUnauthorized)
		_, err = m.ConsumeToken()
		require.ErrorIs(t, err, shared.ErrUnauthorized)
		_, err = m.RefundToken()
		require.ErrorIs(t, err, shared.ErrUnauthorized)
		_, err = m.AddTokens(5)
		require.ErrorIs(t, err, shared.ErrUnauthorized)
		_, err = m.CurrentUser()
		require.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("consume until exhausted", func(t *testing.T) {
		m, _ := newTestManager(t, "")
		_, err := m.Register("Reader", "reader@example.com", "secret1", false)
		require.NoError(t, err)

		for want := models.WelcomeTokens - 1; want >= 0; want-- {
			remaining, err := m.ConsumeToken()
			require.NoError(t, err)
			assert.Equal(t, want, remaining)
		}

		_, err = m.ConsumeToken()
		require.ErrorIs(t, err, shared.ErrQuotaExhausted)

		balance, err := m.RefundToken()
		require.NoError(t, err)
		assert.Equal(t, 1, balance)

		balance, err = m.AddTokens(10)
		require.NoError(t, err)
		assert.Equal(t, 11, balance)

		_, err = m.AddTokens(0)
		require.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("concurrent consumers never overdraw", func(t *testing.T) {
		m, _ := newTestManager(t, "")
		_, err := m.Register("Reader", "reader@example.com", "secret1", false)
		require.NoError(t, err)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			ok, fail int
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.ConsumeToken()
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if assert.ErrorIs(t, err, shared.ErrQuotaExhausted) {
					fail++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, models.WelcomeTokens, ok)
		assert.Equal(t, 10-models.WelcomeTokens, fail)
	})

	t.Run("author check", func(t *testing.T) {
		m, _ := newTestManager(t, "")
		_, err := m.Register("Reader", "reader@example.com", "secret1", false)
		require.NoError(t, err)

		_, err = m.RequireAuthor()
		require.ErrorIs(t, err, shared.ErrNotAuthor)

		_, err = m.Register("Writer", "writer@example.com", "secret1", true)
		require.NoError(t, err)
		user, err := m.RequireAuthor()
		require.NoError(t, err)
		assert.Equal(t, "Writer", user.Username())
	})
}
