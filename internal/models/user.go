package models

import (
	"fmt"
	"strings"
)

// WelcomeTokens is the AI token balance granted to newly registered accounts.
const WelcomeTokens = 3

// User is a reader or author account.
//
// The token balance gates AI translation requests and is only ever decremented through the ledger's atomic consume.
type User struct {
	base
	username     string
	email        string
	handle       string
	avatarURL    string
	passwordHash string
	verified     bool
	author       bool
	tokens       int
}

// NewUser creates a [User] with a handle derived from the username.
func NewUser(sequence int, username, email string, author bool) *User {
	return &User{
		base:     newBase(sequence),
		username: username,
		email:    strings.ToLower(strings.TrimSpace(email)),
		handle:   "@" + strings.ToLower(username),
		author:   author,
		tokens:   WelcomeTokens,
	}
}

func (u *User) Username() string     { return u.username }
func (u *User) Email() string        { return u.email }
func (u *User) Handle() string       { return u.handle }
func (u *User) AvatarURL() string    { return u.avatarURL }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) Verified() bool       { return u.verified }
func (u *User) IsAuthor() bool       { return u.author }
func (u *User) Tokens() int          { return u.tokens }

func (u *User) SetUsername(username string) { u.username = username }
func (u *User) SetHandle(handle string)     { u.handle = handle }
func (u *User) SetAvatarURL(url string)     { u.avatarURL = url }
func (u *User) SetPasswordHash(hash string) { u.passwordHash = hash }
func (u *User) SetVerified(verified bool)   { u.verified = verified }
func (u *User) SetAuthor(author bool)       { u.author = author }
func (u *User) SetTokens(tokens int)        { u.tokens = tokens }

// Validate checks required fields and the non-negative balance invariant.
func (u *User) Validate() error {
	if strings.TrimSpace(u.username) == "" {
		return fmt.Errorf("username is required")
	}
	if !strings.Contains(u.email, "@") {
		return fmt.Errorf("invalid email: %q", u.email)
	}
	if u.tokens < 0 {
		return fmt.Errorf("token balance cannot be negative: %d", u.tokens)
	}
	return nil
}
