package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
	"github.com/couchcryptid/outage-verify-service/internal/lifecycle"
)

// Lifecycle is the report lifecycle as seen by the HTTP layer.
type Lifecycle interface {
	RegisterUser(ctx context.Context, id string, home domain.Point) (domain.UserTrust, error)
	SubmitReport(ctx context.Context, req lifecycle.SubmitRequest) (*domain.Report, error)
	CastVote(ctx context.Context, reportID, voterID string, voteType domain.VoteType, at domain.Point) (lifecycle.VoteResult, error)
	ConfirmResolution(ctx context.Context, reportID, userID string, at domain.Point) (lifecycle.ResolveResult, error)
	Nearby(ctx context.Context, center domain.Point, radiusMeters float64, callerID string) (lifecycle.NearbyResult, error)
	GetReport(ctx context.Context, id string) (*domain.Report, error)
}

// Options configures the API middleware.
type Options struct {
	JWTSecret      []byte
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server exposes the outage API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        Lifecycle
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /api/users, /api/outages, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, svc Lifecycle, ready sharedobs.ReadinessChecker, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("POST /api/users", s.handleRegister)
	api.HandleFunc("GET /api/outages/nearby", s.handleNearby)
	api.HandleFunc("POST /api/outages", s.handleSubmit)
	api.HandleFunc("GET /api/outages/{id}", s.handleGet)
	api.HandleFunc("POST /api/outages/{id}/votes", s.handleVote)
	api.HandleFunc("POST /api/outages/{id}/resolutions", s.handleResolve)

	limit := newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, 10*time.Minute, logger)
	auth := newAuthenticator(opts.JWTSecret, logger)
	mux.Handle("/api/", limit.middleware(auth.middleware(api)))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
