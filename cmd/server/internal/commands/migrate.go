package commands

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgmgr/internal/auth"
	"github.com/wolfeidau/orgmgr/internal/logger"
	"github.com/wolfeidau/orgmgr/internal/orgs"
)

// MigrateCmd applies the PostgreSQL schema and unique indexes, then exits.
type MigrateCmd struct {
	Store StoreFlags `embed:"" prefix:"store-"`
}

func (m *MigrateCmd) Run(globals *Globals) error {
	log.Logger = logger.Setup(globals.Dev)

	if m.Store.Type != "postgres" {
		return errors.New("migrate only applies to --store-type=postgres")
	}

	ctx := context.Background()
	st, err := m.Store.open(ctx, true)
	if err != nil {
		return err
	}
	defer st.Close()

	orgs.NewManager(st, auth.NewArgon2Hasher(auth.DefaultPasswordParams())).EnsureIndexes(ctx)

	log.Info().Msg("Migration finished")
	return nil
}
