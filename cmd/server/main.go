package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/wolfeidau/orgmgr/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool `help:"Enable development mode (console logs at debug level)." env:"ORGMGR_DEV"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" help:"Start the organization API server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply PostgreSQL migrations and exit"`
	}
)

func main() {
	// a missing .env is fine; flags and the environment still apply
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cmd := kong.Parse(&cli,
		kong.Name("orgmgr-server"),
		kong.Vars{
			"version": version,
		})
	err := cmd.Run(&commands.Globals{Dev: cli.Dev, Version: version})
	cmd.FatalIfErrorf(err)
}
