package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/ctxutil"
	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/remote"
	"github.com/minimahq/minima/internal/service/syncer"
	"github.com/minimahq/minima/internal/storage"
)

// HandleListResults handles GET /v1/results.
//
// With ?sync=true, or when the owner's cache is completely empty, an auto
// sync runs before the page is built. A failing sync degrades to whatever
// is cached instead of failing the request — the dashboard always renders.
func (h *Handlers) HandleListResults(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())
	q := parseResultQuery(r)

	if r.URL.Query().Get("sync") == "true" {
		h.autoSyncBestEffort(r, ownerID)
	}

	page, err := h.store.ListResults(r.Context(), ownerID, q)
	if err != nil {
		h.writeInternalError(w, r, "failed to list results", err)
		return
	}

	// A first-time visitor has nothing cached at all. Pull their recent
	// operations once, then re-read.
	if page.Total == 0 && page.Stats.Total == 0 && r.URL.Query().Get("sync") != "true" {
		if h.autoSyncBestEffort(r, ownerID) {
			page, err = h.store.ListResults(r.Context(), ownerID, q)
			if err != nil {
				h.writeInternalError(w, r, "failed to list results", err)
				return
			}
		}
	}

	writeJSON(w, r, http.StatusOK, page)
}

// autoSyncBestEffort runs an auto sync and reports whether anything new
// landed. All failures degrade: a missing credential or a remote outage
// never blocks a read of the local cache.
func (h *Handlers) autoSyncBestEffort(r *http.Request, ownerID uuid.UUID) bool {
	summary, err := h.syncSvc.AutoSync(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, syncer.ErrNoCredential) {
			h.logger.Debug("auto sync skipped: no usable credential", "owner_id", ownerID)
		} else {
			h.logger.Warn("auto sync failed, serving cached results",
				"owner_id", ownerID, "error", err)
		}
		return false
	}
	return summary.Synced > 0
}

// HandleGetResult handles GET /v1/results/{operation_id}.
//
// A cache miss triggers a one-off sync before giving up, so a freshly
// finished run is visible the first time the dashboard asks for it.
func (h *Handlers) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())

	operationID := r.PathValue("operation_id")
	if err := model.ValidateOperationID(operationID); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	res, err := h.store.GetResult(r.Context(), ownerID, operationID)
	if err == nil {
		writeJSON(w, r, http.StatusOK, res)
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		h.writeInternalError(w, r, "failed to get result", err)
		return
	}

	synced, err := h.syncSvc.SyncOne(r.Context(), ownerID, operationID)
	switch {
	case errors.Is(err, syncer.ErrNoCredential):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "result not found")
	case err != nil:
		h.writeSyncError(w, r, "failed to sync result", err)
	case synced == nil:
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "result not found")
	default:
		writeJSON(w, r, http.StatusOK, synced)
	}
}

// HandleSyncResult handles POST /v1/results/{operation_id}/sync.
func (h *Handlers) HandleSyncResult(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())

	operationID := r.PathValue("operation_id")
	if err := model.ValidateOperationID(operationID); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	res, err := h.syncSvc.SyncOne(r.Context(), ownerID, operationID)
	switch {
	case err != nil:
		h.writeSyncError(w, r, "failed to sync result", err)
	case res == nil:
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "operation not found on remote service")
	default:
		writeJSON(w, r, http.StatusOK, res)
	}
}

// HandleSyncBatch handles POST /v1/results/sync.
// The batch is validated before any remote call; the response carries one
// outcome per requested id.
func (h *Handlers) HandleSyncBatch(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())

	var req model.SyncManyRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	summary, err := h.syncSvc.SyncMany(r.Context(), ownerID, req.OperationIDs)
	if err != nil {
		h.writeSyncError(w, r, "failed to sync batch", err)
		return
	}

	writeJSON(w, r, http.StatusOK, summary)
}

// writeSyncError maps orchestrator failures onto the error envelope.
func (h *Handlers) writeSyncError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var svcErr *remote.ServiceError
	switch {
	case errors.Is(err, syncer.ErrEmptyBatch), errors.Is(err, syncer.ErrBatchTooLarge):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, syncer.ErrNoCredential):
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeServiceUnavailable,
			"no usable optimizer key; add one under settings")
	case errors.As(err, &svcErr):
		h.logger.Warn("remote optimizer error", "status", svcErr.Status, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusBadGateway, model.ErrCodeRemoteUnavailable,
			"optimizer service is unavailable")
	default:
		h.writeInternalError(w, r, msg, err)
	}
}
