package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/orgmgr/internal/client"
	"github.com/wolfeidau/orgmgr/internal/models"
)

// SeedOrg is one organization in a seed file.
type SeedOrg struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SeedFile lists organizations to create.
type SeedFile struct {
	Organizations []SeedOrg `yaml:"organizations"`
}

// SeedCmd creates organizations from a YAML file.
type SeedCmd struct {
	File string `help:"YAML file listing organizations" required:"" type:"existingfile"`
}

func (s *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	f, err := os.Open(s.File)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	orgs, err := parseSeedFile(f)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	c, err := globals.newClient()
	if err != nil {
		return err
	}

	summary := seedOrgs(ctx, c, orgs, os.Stdout)
	fmt.Printf("\nCreated %d, skipped %d, failed %d\n", summary.created, summary.skipped, summary.failed)

	if summary.failed > 0 {
		return fmt.Errorf("%d organizations could not be created", summary.failed)
	}
	return nil
}

// orgCreator is the part of the API client seeding needs.
type orgCreator interface {
	CreateOrg(ctx context.Context, name, email, password string) (*models.OrgView, error)
}

type seedSummary struct {
	created, skipped, failed int
}

// seedOrgs creates each organization in turn. Organizations or admins that
// already exist are skipped so a seed file can be applied repeatedly.
func seedOrgs(ctx context.Context, c orgCreator, orgs []SeedOrg, out io.Writer) seedSummary {
	var summary seedSummary

	for _, org := range orgs {
		view, err := c.CreateOrg(ctx, org.Name, org.Email, org.Password)
		switch {
		case err == nil:
			summary.created++
			fmt.Fprintf(out, "created  %s (%s)\n", view.Name, view.CollectionName)
		case isAlreadyExists(err):
			summary.skipped++
			fmt.Fprintf(out, "skipped  %s: %v\n", org.Name, err)
		default:
			summary.failed++
			fmt.Fprintf(out, "failed   %s: %v\n", org.Name, err)
		}
	}

	return summary
}

func isAlreadyExists(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	return strings.Contains(apiErr.Detail, "already")
}

func parseSeedFile(r io.Reader) ([]SeedOrg, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file SeedFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, err
	}

	for i, org := range file.Organizations {
		switch {
		case strings.TrimSpace(org.Name) == "":
			return nil, fmt.Errorf("organization %d: name is required", i+1)
		case org.Email == "":
			return nil, fmt.Errorf("organization %q: email is required", org.Name)
		case org.Password == "":
			return nil, fmt.Errorf("organization %q: password is required", org.Name)
		}
	}

	return file.Organizations, nil
}
