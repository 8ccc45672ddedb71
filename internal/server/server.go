// Package server exposes the organization lifecycle over a JSON HTTP API.
package server

import (
	"context"
	"net/http"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfeidau/orgmgr/internal/auth"
	httpmw "github.com/wolfeidau/orgmgr/internal/http"
	"github.com/wolfeidau/orgmgr/internal/logger"
	"github.com/wolfeidau/orgmgr/internal/models"
	"github.com/wolfeidau/orgmgr/internal/telemetry"
)

// Organizations is the lifecycle the API drives.
type Organizations interface {
	Create(ctx context.Context, orgName, email, password string) (*models.OrgView, error)
	GetByName(ctx context.Context, orgName string) (*models.OrgView, error)
	GetByID(ctx context.Context, id string) (*models.OrgView, error)
	Update(ctx context.Context, oldName, newName, email, password string) error
	Delete(ctx context.Context, orgName string) error
}

// Authenticator exchanges admin credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, bool, error)
}

// Config controls the middleware around the API routes.
type Config struct {
	CORSOrigins    []string
	TrustedOrigins []string // origins allowed to make cross-origin writes
	TrustProxy     bool
	Tracing        bool
}

// Server serves the organization API.
type Server struct {
	orgs     Organizations
	authn    Authenticator
	verifier auth.TokenVerifier
}

// NewServer creates a Server.
func NewServer(orgs Organizations, authn Authenticator, verifier auth.TokenVerifier) *Server {
	return &Server{orgs: orgs, authn: authn, verifier: verifier}
}

// Routes returns the API routes without middleware.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	requireAdmin := auth.RequireBearer(s.verifier)

	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /admin/login", s.login)
	mux.HandleFunc("POST /org/create", s.createOrg)
	mux.HandleFunc("GET /org/get", s.getOrg)
	mux.Handle("PUT /org/update", requireAdmin(http.HandlerFunc(s.updateOrg)))
	mux.Handle("DELETE /org/delete", requireAdmin(http.HandlerFunc(s.deleteOrg)))

	return mux
}

// Handler returns the routes wrapped in tracing, compression, CORS,
// cross-origin protection, client IP and request logging.
func (s *Server) Handler(cfg Config, log zerolog.Logger) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range cfg.TrustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, err
		}
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         600,
	})

	var mws []httpmw.Middleware
	if cfg.Tracing {
		mws = append(mws, func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "orgmgr",
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return r.Method + " " + r.URL.Path
				}),
			)
		})
	}
	mws = append(mws,
		func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) },
		corsMiddleware.Handler,
		protection.Handler,
		httpmw.ClientIPMiddleware(cfg.TrustProxy),
		logger.Requests(log),
		countRequests,
	)

	return httpmw.Chain(s.Routes(), mws...), nil
}

func countRequests(next http.Handler) http.Handler {
	metrics := telemetry.GetMetrics()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := httpmw.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, rec.Status())
	})
}
