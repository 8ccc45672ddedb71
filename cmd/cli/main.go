package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgmgr/cmd/cli/internal/commands"
	"github.com/wolfeidau/orgmgr/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in as an organization admin"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Forget the stored token for the server"`
		Sessions commands.SessionsCmd `cmd:"" help:"List stored tokens"`
		Org      commands.OrgCmd      `cmd:"" help:"Manage organizations"`
		Seed     commands.SeedCmd     `cmd:"" help:"Create organizations from a YAML file"`

		Server    string        `help:"Server URL" default:"http://localhost:8080" env:"ORGMGR_SERVER"`
		ConfigDir string        `help:"Directory for tokens and the response cache (default ~/.orgmgr)" env:"ORGMGR_CONFIG_DIR"`
		Timeout   time.Duration `help:"Request timeout" default:"30s"`
		Debug     bool          `help:"Enable debug mode."`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("orgmgr-cli"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)
	if !cli.Debug {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	err := cmd.Run(&commands.Globals{
		Debug:     cli.Debug,
		Version:   version,
		Server:    cli.Server,
		ConfigDir: cli.ConfigDir,
		Timeout:   cli.Timeout,
	})
	cmd.FatalIfErrorf(err)
}
