package api

import (
	"encoding/json"
	"net/http"

	"shortener/internal/auth"
	"shortener/internal/models"

	"github.com/gorilla/mux"
)

// ListAPIKeys handles GET /api/v1/keys. Responses carry metadata only; the
// secret is unrecoverable after issuance.
func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.storage.ListAPIKeys(r.Context())
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "failed to list keys")
		return
	}

	resp := make([]models.APIKeyResponse, len(keys))
	for i, k := range keys {
		resp[i].FromAPIKey(k)
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// CreateAPIKey handles POST /api/v1/keys. The response includes the raw
// key — returned exactly once, never stored.
func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	key, rawKey, err := h.validator.Issue(r.Context(), req.Owner, req.Name)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "failed to create key")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, models.CreateAPIKeyResponse{
		ID:        key.ID,
		Owner:     key.Owner,
		Name:      key.Name,
		Key:       rawKey,
		Prefix:    key.Prefix,
		CreatedAt: key.CreatedAt,
	})
}

// DeleteAPIKey handles DELETE /api/v1/keys/{id}. Revocation is immediate:
// the record is hard-deleted and the secret stops validating.
func (h *Handlers) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Refuse self-revocation so a deployment cannot lock itself out of
	// key management mid-request.
	if identity := auth.IdentityFrom(r.Context()); identity.IsVerified() && identity.Key().ID == id {
		h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict, "cannot revoke the key used for this request")
		return
	}

	existed, err := h.validator.Revoke(r.Context(), id)
	if err != nil {
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "failed to delete key")
		return
	}
	if !existed {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "key not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
