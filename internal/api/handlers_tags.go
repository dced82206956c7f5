package api

import (
	"encoding/json"
	"net/http"

	"shortener/internal/models"

	"github.com/gorilla/mux"
)

// CreateTag handles tag creation requests
// POST /api/v1/tags
func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	response, err := h.linkService.CreateTag(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, response)
}

// ListTags handles tag list requests
// GET /api/v1/tags
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	response, err := h.linkService.ListTags(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// DeleteTag handles tag deletion by name, detaching it from all links
// DELETE /api/v1/tags/{name}
func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.linkService.DeleteTag(r.Context(), name); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
