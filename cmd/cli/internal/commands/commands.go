package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/orgmgr/cmd/cli/internal/credentials"
	"github.com/wolfeidau/orgmgr/internal/client"
	"github.com/wolfeidau/orgmgr/internal/models"
)

type Globals struct {
	Debug     bool
	Version   string
	Server    string
	ConfigDir string
	Timeout   time.Duration
}

func (g *Globals) credentialStore() (*credentials.Store, error) {
	store, err := credentials.NewStore(g.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	return store, nil
}

func (g *Globals) newClient() (*client.Client, error) {
	dir := g.ConfigDir
	if dir == "" {
		var err error
		if dir, err = credentials.DefaultDir(); err != nil {
			return nil, err
		}
	}

	return client.New(client.Config{
		ServerURL: g.Server,
		Timeout:   g.Timeout,
		CacheDir:  filepath.Join(dir, "cache"),
		Debug:     g.Debug,
	})
}

// authedClient returns a client carrying the stored token for the server.
func (g *Globals) authedClient() (*client.Client, error) {
	store, err := g.credentialStore()
	if err != nil {
		return nil, err
	}

	sess, err := store.Get(g.Server)
	switch {
	case errors.Is(err, credentials.ErrSessionNotFound):
		return nil, fmt.Errorf("not logged in to %s\n\nRun: orgmgr-cli login --email <email>", g.Server)
	case errors.Is(err, credentials.ErrSessionExpired):
		return nil, fmt.Errorf("session for %s expired at %s\n\nRun: orgmgr-cli login --email %s",
			g.Server, sess.ExpiresAt.Local().Format(time.RFC3339), sess.Email)
	case err != nil:
		return nil, err
	}

	c, err := g.newClient()
	if err != nil {
		return nil, err
	}
	return c.WithToken(sess.Token), nil
}

func printOrg(out io.Writer, view *models.OrgView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", view.ID)
	fmt.Fprintf(w, "Name:\t%s\n", view.Name)
	fmt.Fprintf(w, "Collection:\t%s\n", view.CollectionName)
	if view.AdminEmail != "" {
		fmt.Fprintf(w, "Admin:\t%s\n", view.AdminEmail)
	}
	w.Flush()
}
