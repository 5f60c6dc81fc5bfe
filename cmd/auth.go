package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/formatter"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// accountStatus is the JSON shape of `auth status`.
type accountStatus struct {
	SignedIn bool   `json:"signed_in"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Author   bool   `json:"author"`
	Tokens   int    `json:"tokens"`
}

// AuthRegister creates an account with the welcome token balance and signs it in.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	user, err := r.auth.Register(cmd.String("username"), cmd.String("email"), cmd.String("password"), cmd.Bool("author"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Welcome, %s\n", user.Username())
	return r.writePlain("You have %d AI tokens to translate pages and narrate chapters.\n", user.Tokens())
}

// AuthLogin signs in to an existing account.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	user, err := r.auth.Login(cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Signed in as %s (%d AI tokens)\n", user.Username(), user.Tokens())
}

// AuthLogout signs out and removes the session file.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if !r.auth.IsAuthenticated() {
		return r.writePlain("Not signed in\n")
	}
	if err := r.auth.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus shows the signed-in account and its AI token balance.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	user, err := r.auth.CurrentUser()
	if errors.Is(err, shared.ErrUnauthorized) {
		if cmd.Bool("json") {
			return r.writeJSON(accountStatus{}, true)
		}
		return r.writePlain("Not signed in. Run 'aleerpe auth login' or 'aleerpe auth register'.\n")
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(accountStatus{
			SignedIn: true,
			ID:       user.ID(),
			Username: user.Username(),
			Email:    user.Email(),
			Author:   user.IsAuthor(),
			Tokens:   user.Tokens(),
		}, true)
	}
	return r.writePlain("%s", formatter.Account(user))
}

// AuthTokensAdd credits AI tokens to the signed-in account.
func (r *Runner) AuthTokensAdd(ctx context.Context, cmd *cli.Command) error {
	amount := cmd.Int("amount")
	if amount <= 0 {
		return fmt.Errorf("%w: --amount must be positive", shared.ErrInvalidFlag)
	}

	balance, err := r.auth.AddTokens(int(amount))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added %d AI tokens (balance: %d)\n", amount, balance)
}
