package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/auth"
	"github.com/minimahq/minima/internal/ctxutil"
	"github.com/minimahq/minima/internal/ratelimit"
)

// Server is the Minima HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	Store    ResultStore
	KeySvc   KeyService
	SyncSvc  SyncService
	Pinger   Pinger
	Verifier *auth.Verifier
	Limiter  ratelimit.Limiter
	Logger   *slog.Logger

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		KeySvc:              cfg.KeySvc,
		SyncSvc:             cfg.SyncSvc,
		Pinger:              cfg.Pinger,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Sync endpoints fan out into remote optimizer calls, so they get a
	// per-owner limit. Plain cache reads are not limited.
	syncRL := ratelimit.Middleware(cfg.Limiter, ownerKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Results: local reads with sync-on-miss, plus explicit sync triggers.
	mux.Handle("GET /v1/results", http.HandlerFunc(h.HandleListResults))
	mux.Handle("GET /v1/results/{operation_id}", http.HandlerFunc(h.HandleGetResult))
	mux.Handle("POST /v1/results/sync", syncRL(http.HandlerFunc(h.HandleSyncBatch)))
	mux.Handle("POST /v1/results/{operation_id}/sync", syncRL(http.HandlerFunc(h.HandleSyncResult)))

	// Optimizer keys.
	mux.Handle("POST /v1/keys", http.HandlerFunc(h.HandleCreateKey))
	mux.Handle("GET /v1/keys", http.HandlerFunc(h.HandleListKeys))
	mux.Handle("DELETE /v1/keys/{id}", http.HandlerFunc(h.HandleRevokeKey))

	// OpenAPI spec (no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.Verifier, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// ownerKeyFunc keys rate limits by the authenticated owner.
func ownerKeyFunc(r *http.Request) string {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())
	if ownerID == uuid.Nil {
		return ""
	}
	return "sync:" + ownerID.String()
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
