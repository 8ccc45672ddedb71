package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/wolfeidau/orgmgr/internal/auth"
	"github.com/wolfeidau/orgmgr/internal/logger"
	"github.com/wolfeidau/orgmgr/internal/orgs"
	"github.com/wolfeidau/orgmgr/internal/server"
	"github.com/wolfeidau/orgmgr/internal/telemetry"
)

type ServeCmd struct {
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"ORGMGR_LISTEN"`
	Cert   string `help:"path to TLS cert file, plain HTTP with h2c when empty" default:"" env:"ORGMGR_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"ORGMGR_TLS_KEY"`

	// Token configuration
	JWTSecret    string        `help:"secret used to sign access tokens (at least 32 bytes)" required:"" env:"ORGMGR_JWT_SECRET"`
	JWTAlgorithm string        `help:"token signing algorithm" default:"HS256" enum:"HS256,HS384,HS512" env:"ORGMGR_JWT_ALGORITHM"`
	TokenTTL     time.Duration `help:"access token lifetime" default:"60m" env:"ORGMGR_TOKEN_TTL"`

	// HTTP boundary
	CORSOrigins    []string `help:"allowed CORS origins" env:"ORGMGR_CORS_ORIGINS"`
	TrustedOrigins []string `help:"origins allowed to make cross-origin writes" env:"ORGMGR_TRUSTED_ORIGINS"`
	TrustProxy     bool     `help:"take the client IP from X-Forwarded-For" default:"false" env:"ORGMGR_TRUST_PROXY"`

	// Telemetry
	Tracing     bool    `help:"export traces and metrics over OTLP" default:"false" env:"ORGMGR_TRACING"`
	SampleRatio float64 `help:"trace sample ratio" default:"1" env:"ORGMGR_TRACE_SAMPLE_RATIO"`

	ShutdownTimeout time.Duration `help:"grace period for in-flight requests" default:"15s"`

	Store StoreFlags `embed:"" prefix:"store-"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	log.Logger = logger.Setup(globals.Dev)
	httpLog := log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("dev", globals.Dev).Msg("Starting server")

	if c.Tracing {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "orgmgr-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown telemetry")
				}
			}()
		}
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:    []byte(c.JWTSecret),
		Algorithm: c.JWTAlgorithm,
		TTL:       c.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("invalid token configuration: %w", err)
	}

	st, err := c.Store.open(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	hasher := auth.NewArgon2Hasher(auth.DefaultPasswordParams())
	manager := orgs.NewManager(st, hasher)
	manager.EnsureIndexes(ctx)

	srv := server.NewServer(manager, orgs.NewAuthenticator(st, hasher, issuer), issuer)
	handler, err := srv.Handler(server.Config{
		CORSOrigins:    c.CORSOrigins,
		TrustedOrigins: c.TrustedOrigins,
		TrustProxy:     c.TrustProxy,
		Tracing:        c.Tracing,
	}, httpLog)
	if err != nil {
		return fmt.Errorf("failed to configure HTTP handler: %w", err)
	}

	tls := c.Cert != "" || c.Key != ""
	if tls {
		if c.Cert == "" || c.Key == "" {
			return errors.New("both --cert and --key are required for TLS")
		}
		for _, path := range []string{c.Cert, c.Key} {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("TLS file not found at %s: %w", path, err)
			}
		}
	} else {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	log.Info().Str("addr", c.Listen).Bool("tls", tls).Msg("Listening")
	return runHTTPServer(ctx, httpServer, func() error {
		if tls {
			return httpServer.ListenAndServeTLS(c.Cert, c.Key)
		}
		return httpServer.ListenAndServe()
	}, c.ShutdownTimeout)
}

// runHTTPServer runs serve until ctx is done, then drains in-flight requests
// for up to timeout. Request contexts are independent of ctx.
func runHTTPServer(ctx context.Context, httpServer *http.Server, serve func() error, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", timeout).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
