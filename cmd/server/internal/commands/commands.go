package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgmgr/internal/store"
	boltstore "github.com/wolfeidau/orgmgr/internal/store/bolt"
	memorystore "github.com/wolfeidau/orgmgr/internal/store/memory"
	postgresstore "github.com/wolfeidau/orgmgr/internal/store/postgres"
)

type Globals struct {
	Dev     bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// StoreFlags selects and configures the document store.
type StoreFlags struct {
	Type     string        `help:"store type" default:"memory" env:"ORGMGR_STORE_TYPE" enum:"memory,bolt,postgres"`
	BoltPath string        `help:"bolt database file" default:"orgmgr.db" env:"ORGMGR_BOLT_PATH"`
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
}

type PostgresFlags struct {
	ConnString      string        `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	ConnectRetry    time.Duration `help:"how long to retry an unreachable database at startup" default:"30s"`
	AutoMigrate     bool          `help:"run database migrations on startup" default:"false" env:"ORGMGR_POSTGRES_AUTO_MIGRATE"`
}

func (p *PostgresFlags) check() error {
	if p.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--store-postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// open builds the configured store. migrate forces postgres migrations.
func (s *StoreFlags) open(ctx context.Context, migrate bool) (store.Store, error) {
	switch s.Type {
	case "bolt":
		st, err := boltstore.Open(s.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		log.Info().Str("path", s.BoltPath).Msg("Using bolt store")
		return st, nil

	case "postgres":
		if err := s.Postgres.check(); err != nil {
			return nil, err
		}
		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      s.Postgres.ConnString,
			MaxConns:        s.Postgres.MaxConns,
			MinConns:        s.Postgres.MinConns,
			MaxConnLifetime: s.Postgres.MaxConnLifetime,
			MaxConnIdleTime: s.Postgres.MaxConnIdleTime,
			ConnectRetry:    s.Postgres.ConnectRetry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if migrate || s.Postgres.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL store")
		return postgresstore.NewStore(pool), nil

	default:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memorystore.NewStore(), nil
	}
}
