package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/model"
)

// ResultStore is the local query surface handlers read from.
type ResultStore interface {
	GetResult(ctx context.Context, ownerID uuid.UUID, operationID string) (model.OptimizationResult, error)
	ListResults(ctx context.Context, ownerID uuid.UUID, q model.ResultQuery) (model.ResultPage, error)
}

// KeyService manages optimizer credentials.
type KeyService interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string) (model.CredentialWithPlaintext, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error)
	Revoke(ctx context.Context, ownerID, credID uuid.UUID) (model.Credential, error)
}

// SyncService mirrors remote results into the local store.
type SyncService interface {
	SyncOne(ctx context.Context, ownerID uuid.UUID, operationID string) (*model.OptimizationResult, error)
	SyncMany(ctx context.Context, ownerID uuid.UUID, operationIDs []string) (model.SyncSummary, error)
	AutoSync(ctx context.Context, ownerID uuid.UUID) (model.SyncSummary, error)
}

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               ResultStore
	keySvc              KeyService
	syncSvc             SyncService
	pinger              Pinger
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               ResultStore
	KeySvc              KeyService
	SyncSvc             SyncService
	Pinger              Pinger
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:               d.Store,
		keySvc:              d.KeySvc,
		syncSvc:             d.SyncSvc,
		pinger:              d.Pinger,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleOpenAPISpec handles GET /openapi.yaml.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "openapi spec not available")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.openapiSpec)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	if err := h.pinger.Ping(r.Context()); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		h.logger.Error("health check: database unreachable", "error", err)
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":         status,
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// writeInternalError logs the underlying error and writes a generic 500.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, msg)
}

// parseResultQuery reads list parameters from the URL. Out-of-range values
// are clamped rather than rejected; an unknown sort column falls back to
// created_at.
func parseResultQuery(r *http.Request) model.ResultQuery {
	params := r.URL.Query()

	q := model.ResultQuery{
		Page:   queryInt(params.Get("page"), 1),
		Limit:  queryInt(params.Get("limit"), model.DefaultPageLimit),
		Search: params.Get("search"),
		SortBy: model.ResultSort(params.Get("sort_by")),
	}
	q.SortDesc = params.Get("sort_order") != "asc"

	if s := params.Get("status"); s != "" {
		if status := model.RunStatus(s); model.ValidRunStatus(status) {
			q.Status = &status
		}
	}
	if s := params.Get("strategy"); s != "" {
		q.Strategy = &s
	}
	if t := queryTime(params.Get("start_date")); t != nil {
		q.StartDate = t
	}
	if t := queryTime(params.Get("end_date")); t != nil {
		q.EndDate = t
	}

	return q.Normalize()
}

func queryInt(raw string, defaultVal int) int {
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}

func queryTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
