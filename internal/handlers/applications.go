package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

// MaxUploadBytes bounds the multipart form, leaving headroom over the
// document size limit for form overhead.
const MaxUploadBytes = services.MaxDocumentSize + 1<<20

type ApplicationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ApplicationID string `json:"application_id"`
}

type ApplicationListResponse struct {
	Success      bool                        `json:"success"`
	Applications []models.ServiceApplication `json:"applications"`
}

type UploadResponse struct {
	Success  bool                      `json:"success"`
	Message  string                    `json:"message"`
	URL      string                    `json:"url,omitempty"`
	Document *services.UploadedDocument `json:"document,omitempty"`
}

// SubmitApplication accepts one of the online service forms. Signing in is
// optional; when a session is present the application is linked to it.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	t := models.ApplicationType(chi.URLParam(r, "type"))
	if _, ok := t.Prefix(); !ok {
		writeError(w, http.StatusNotFound, "Unknown service")
		return
	}
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	ip := h.Resolver.ClientIP(r)
	if !h.allow(w, r, services.ActionServiceApplication, ip) {
		return
	}

	app, err := h.Applications.Submit(r.Context(), t, raw, middleware.UserID(r.Context()), ip)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Unknown service")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ApplicationResponse{
		Success:       true,
		Message:       services.ConfirmationMessage(t, app.ApplicationID),
		ApplicationID: app.ApplicationID,
	})
}

func (h *Handler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Applications.ListByUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if apps == nil {
		apps = []models.ServiceApplication{}
	}
	writeJSON(w, http.StatusOK, ApplicationListResponse{Success: true, Applications: apps})
}

// UploadDocument stores a supporting document for an application.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.Uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "File uploads are not available")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse upload")
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	file.Close()

	doc, err := h.Uploader.UploadDocument(r.Context(), fileHeader, middleware.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{
		Success:  true,
		Message:  "File uploaded successfully",
		URL:      doc.URL,
		Document: doc,
	})
}
