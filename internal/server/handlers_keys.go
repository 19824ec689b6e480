package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/ctxutil"
	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/storage"
)

// HandleCreateKey handles POST /v1/keys.
// Stores a freshly generated optimizer key encrypted and returns the
// plaintext exactly once. After this response, only the prefix is available.
func (h *Handlers) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())

	var req model.CreateCredentialRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := model.ValidateCredentialName(req.Name); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	created, err := h.keySvc.Create(r.Context(), ownerID, req.Name)
	if err != nil {
		h.writeInternalError(w, r, "failed to create key", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, created)
}

// HandleListKeys handles GET /v1/keys.
// Returns credential metadata only; ciphertext and plaintext never appear.
func (h *Handlers) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())

	keys, err := h.keySvc.List(r.Context(), ownerID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list keys", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.CredentialListResponse{
		Keys:  keys,
		Total: len(keys),
	})
}

// HandleRevokeKey handles DELETE /v1/keys/{id}.
// Revocation is one-way and idempotent; the key stops authorizing syncs
// immediately, and revoking it again is a no-op 204.
func (h *Handlers) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ownerID := ctxutil.OwnerIDFromContext(r.Context())

	credID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid key id")
		return
	}

	if _, err := h.keySvc.Revoke(r.Context(), ownerID, credID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "key not found")
			return
		}
		h.writeInternalError(w, r, "failed to revoke key", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
