package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/orgmgr/cmd/cli/internal/credentials"
)

// LoginCmd exchanges admin credentials for a token and stores it.
type LoginCmd struct {
	Email    string `help:"Admin email" required:""`
	Password string `help:"Admin password" required:"" env:"ORGMGR_PASSWORD"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := globals.credentialStore()
	if err != nil {
		return err
	}

	c, err := globals.newClient()
	if err != nil {
		return err
	}

	tok, err := c.Login(ctx, l.Email, l.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	sess := credentials.Session{
		Server: globals.Server,
		Email:  l.Email,
		Token:  tok.AccessToken,
	}
	if info, err := credentials.InspectToken(tok.AccessToken); err == nil {
		sess.TokenID = info.ID
		sess.OrgID = info.OrgID
		sess.ExpiresAt = info.ExpiresAt
	}

	if err := store.Save(sess); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Printf("Logged in to %s as %s\n", globals.Server, l.Email)
	if sess.TokenID != "" {
		fmt.Printf("Token %s expires %s\n", sess.TokenID, sess.ExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}

// LogoutCmd forgets the stored token for the server.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := globals.credentialStore()
	if err != nil {
		return err
	}

	if err := store.Delete(globals.Server); err != nil {
		if errors.Is(err, credentials.ErrSessionNotFound) {
			fmt.Printf("Not logged in to %s\n", globals.Server)
			return nil
		}
		return err
	}

	fmt.Printf("Logged out of %s\n", globals.Server)
	return nil
}

// SessionsCmd lists stored tokens.
type SessionsCmd struct{}

func (s *SessionsCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := globals.credentialStore()
	if err != nil {
		return err
	}

	sessions, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		fmt.Println()
		fmt.Println("To log in:")
		fmt.Println("  orgmgr-cli login --email <email>")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tEMAIL\tORG\tSTATUS")
	for _, sess := range sessions {
		status := "valid until " + sess.ExpiresAt.Local().Format(time.RFC3339)
		if sess.Expired(now) {
			status = "expired"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sess.Server, sess.Email, sess.OrgID, status)
	}
	w.Flush()

	return nil
}
