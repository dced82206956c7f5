package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"shortener/internal/auth"
	"shortener/internal/models"

	"github.com/gorilla/mux"
)

// CreateLink handles link creation requests
// POST /api/v1/links
func (h *Handlers) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	createdBy := "anonymous"
	if identity := auth.IdentityFrom(r.Context()); identity.IsVerified() {
		createdBy = identity.Key().Owner
	}

	response, err := h.linkService.CreateLink(r.Context(), &req, createdBy)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.decorate(response)
	h.writeJSONResponse(w, http.StatusCreated, response)
}

// GetLink handles single link lookups
// GET /api/v1/links/{id}
func (h *Handlers) GetLink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	response, err := h.linkService.GetLink(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.decorate(response)
	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListLinks handles link list requests, optionally filtered by tag
// GET /api/v1/links?tag=name
func (h *Handlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")

	response, err := h.linkService.ListLinks(r.Context(), tag)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	for i := range response.Links {
		h.decorate(&response.Links[i])
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// UpdateLink handles partial link updates
// PATCH /api/v1/links/{id}
func (h *Handlers) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	response, err := h.linkService.UpdateLink(r.Context(), id, &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.decorate(response)
	h.writeJSONResponse(w, http.StatusOK, response)
}

// DeleteLink handles link deletion
// DELETE /api/v1/links/{id}
func (h *Handlers) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.linkService.DeleteLink(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetLinkStats handles click analytics requests
// GET /api/v1/links/{id}/stats?days=30
func (h *Handlers) GetLinkStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	days := 0
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed <= 0 {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	response, err := h.linkService.GetStats(r.Context(), id, days)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// TagLink attaches a tag to a link, creating the tag if needed
// PUT /api/v1/links/{id}/tags/{tag}
func (h *Handlers) TagLink(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.linkService.TagLink(r.Context(), vars["id"], vars["tag"]); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UntagLink detaches a tag from a link
// DELETE /api/v1/links/{id}/tags/{tag}
func (h *Handlers) UntagLink(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.linkService.UntagLink(r.Context(), vars["id"], vars["tag"]); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Redirect resolves a slug to its destination and issues the redirect.
// The click is recorded asynchronously; the redirect never waits on it.
// GET /{slug}
func (h *Handlers) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	link, err := h.linkService.Resolve(r.Context(), slug)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Destinations are mutable, so intermediaries must not cache the hop.
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.DestinationURL, http.StatusFound)
}
