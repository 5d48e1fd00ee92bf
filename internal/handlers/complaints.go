package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

type SubmitComplaintRequest struct {
	Category    string `json:"category"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type ComplaintResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	TrackingID string            `json:"tracking_id,omitempty"`
	Complaint  *models.Complaint `json:"complaint"`
	Replayed   bool              `json:"replayed,omitempty"`
}

type ComplaintListResponse struct {
	Success    bool               `json:"success"`
	Complaints []models.Complaint `json:"complaints"`
}

type AdminComplaintListResponse struct {
	Success    bool                        `json:"success"`
	Complaints []models.AdminComplaintView `json:"complaints"`
	Total      int64                       `json:"total"`
	Limit      int                         `json:"limit"`
	Offset     int                         `json:"offset"`
}

type AdvanceRequest struct {
	ExpectedStatus *models.ComplaintStatus `json:"expected_status"`
}

type AdvanceResponse struct {
	Success   bool                       `json:"success"`
	Message   string                     `json:"message"`
	Complaint *models.AdminComplaintView `json:"complaint"`
}

// SubmitComplaint files a grievance for the signed-in user. A repeated
// Idempotency-Key returns the original complaint with 200.
func (h *Handler) SubmitComplaint(w http.ResponseWriter, r *http.Request) {
	var req SubmitComplaintRequest
	if !decode(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))

	// A retry of an earlier submission is answered before the limiter
	// counts it.
	if key != "" && len(key) <= services.MaxIdempotencyKeyLen {
		c, err := h.Complaints.FindByIdempotencyKey(r.Context(), userID, key)
		switch {
		case err == nil:
			writeReplayedComplaint(w, c)
			return
		case !errors.Is(err, services.ErrNotFound):
			h.writeServiceError(w, r, err)
			return
		}
	}

	if !h.allow(w, r, services.ActionComplaintSubmit, userID) {
		return
	}

	c, replayed, err := h.Complaints.Submit(r.Context(), userID, services.ComplaintInput{
		Category:       req.Category,
		Subject:        req.Subject,
		Description:    req.Description,
		Location:       req.Location,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if replayed {
		writeReplayedComplaint(w, c)
		return
	}

	h.screen("complaint", c.ID, c.Subject, c.Description)
	writeJSON(w, http.StatusCreated, ComplaintResponse{
		Success:    true,
		Message:    "Complaint submitted successfully. Your tracking ID is " + c.ID,
		TrackingID: c.ID,
		Complaint:  c,
	})
}

func writeReplayedComplaint(w http.ResponseWriter, c *models.Complaint) {
	w.Header().Set(IdempotentReplayedHeader, "true")
	writeJSON(w, http.StatusOK, ComplaintResponse{
		Success:    true,
		Message:    "Complaint already submitted",
		TrackingID: c.ID,
		Complaint:  c,
		Replayed:   true,
	})
}

func (h *Handler) ListMyComplaints(w http.ResponseWriter, r *http.Request) {
	list, err := h.Complaints.ListByOwner(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ComplaintListResponse{Success: true, Complaints: list})
}

func (h *Handler) isAdmin(r *http.Request) bool {
	if middleware.IsAdmin(r.Context()) {
		return true
	}
	p, err := h.Profiles.Get(r.Context(), middleware.UserID(r.Context()))
	return err == nil && p.IsAdmin
}

// GetComplaint is visible to the owner and to admins; everyone else gets 404.
func (h *Handler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	viewer := services.Viewer{UserID: middleware.UserID(r.Context())}
	viewer.IsAdmin = h.isAdmin(r)

	c, err := h.Complaints.Get(r.Context(), chi.URLParam(r, "id"), viewer)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Complaint not found")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ComplaintResponse{Success: true, Complaint: c})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// AdminListComplaints lists every complaint, optionally filtered by status
// and category. Each row carries the status it may advance to.
func (h *Handler) AdminListComplaints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := services.NormalizeFilter(models.ComplaintFilter{
		Status:   models.ComplaintStatus(q.Get("status")),
		Category: models.ComplaintCategory(q.Get("category")),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	list, total, err := h.Complaints.ListAll(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]models.AdminComplaintView, 0, len(list))
	for _, c := range list {
		views = append(views, models.NewAdminComplaintView(c))
	}
	writeJSON(w, http.StatusOK, AdminComplaintListResponse{
		Success:    true,
		Complaints: views,
		Total:      total,
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
}

// AdvanceComplaint moves a complaint one status forward.
func (h *Handler) AdvanceComplaint(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.ExpectedStatus != nil && !req.ExpectedStatus.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Message: "Unknown status", Field: "expected_status"})
		return
	}

	c, err := h.Complaints.Advance(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()), req.ExpectedStatus)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Complaint not found")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	view := models.NewAdminComplaintView(*c)
	writeJSON(w, http.StatusOK, AdvanceResponse{
		Success:   true,
		Message:   "Complaint status updated to " + string(c.Status),
		Complaint: &view,
	})
}
