package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type HTTPHandler struct {
	service ports.LinkService
	baseURL string
}

func NewHTTPHandler(service ports.LinkService, baseURL string) *HTTPHandler {
	return &HTTPHandler{service: service, baseURL: strings.TrimRight(baseURL, "/")}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	URL          string `json:"url" validate:"required,url,max=2048"`
	DaysToExpire *int   `json:"daysToExpire,omitempty" validate:"omitempty,gt=0"`
}

// LinkResponse is a link plus its public short URL.
type LinkResponse struct {
	domain.Link
	ShortLink string `json:"shortLink"`
}

func (h *HTTPHandler) toResponse(l domain.Link) LinkResponse {
	return LinkResponse{Link: l, ShortLink: h.baseURL + "/" + l.ID}
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrDenied)
		return
	}

	var req CreateLinkRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	link, err := h.service.Create(r.Context(), id.UserID, req.URL, req.DaysToExpire)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(*link))
}

// List returns the caller's links, newest first.
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrDenied)
		return
	}

	links, err := h.service.ListByOwner(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, h.toResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": out})
}

// Deactivate turns off one of the caller's links.
func (h *HTTPHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrDenied)
		return
	}

	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redirect to the destination URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	dest, err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Every visit must reach us to be counted.
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, dest, http.StatusFound)
}
