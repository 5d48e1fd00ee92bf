package handlers

import (
	"errors"
	"net"
	"net/http"

	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type StatsResponse struct {
	Success bool               `json:"success"`
	Stats   *models.AdminStats `json:"stats"`
}

type PrivilegeRequest struct {
	Email         string `json:"email"`
	Justification string `json:"justification"`
}

type PrivilegeResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Stats   *models.AdminStats `json:"stats,omitempty"`
}

type AuditResponse struct {
	Success bool                `json:"success"`
	Entries []models.AuditEntry `json:"entries"`
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Admin.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Success: true, Stats: st})
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	h.changePrivilege(w, r, models.AuditPromote)
}

func (h *Handler) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	h.changePrivilege(w, r, models.AuditRevoke)
}

func (h *Handler) changePrivilege(w http.ResponseWriter, r *http.Request, action models.AuditAction) {
	var req PrivilegeRequest
	if !decode(w, r, &req) {
		return
	}
	actorID := middleware.UserID(r.Context())
	if !h.allow(w, r, services.ActionPrivilegeChange, actorID) {
		return
	}

	pr := models.PrivilegeRequest{
		ActorID:       actorID,
		Email:         req.Email,
		Justification: req.Justification,
		IPAddress:     h.Resolver.ClientIP(r),
		UserAgent:     r.UserAgent(),
	}
	var err error
	msg := "Admin privileges granted successfully"
	if action == models.AuditPromote {
		err = h.Admin.Promote(r.Context(), pr)
	} else {
		err = h.Admin.Revoke(r.Context(), pr)
		msg = "Admin privileges revoked successfully"
	}
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No user found with this email")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := PrivilegeResponse{Success: true, Message: msg}
	if st, err := h.Admin.Stats(r.Context()); err != nil {
		h.log.Warn("stats refresh after privilege change failed", zap.Error(err))
	} else {
		resp.Stats = st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Admin.AuditLog(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditResponse{Success: true, Entries: entries})
}

type BlockedIPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	IP      string `json:"ip"`
	Blocked bool   `json:"blocked"`
}

// blockedIPParam returns the canonical form of the {ip} URL parameter.
func blockedIPParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if ip := net.ParseIP(chi.URLParam(r, "ip")); ip != nil {
		return ip.String(), true
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Message: "Please enter a valid IP address", Field: "ip"})
	return "", false
}

func (h *Handler) GetBlockedIP(w http.ResponseWriter, r *http.Request) {
	if h.Blocks == nil {
		writeError(w, http.StatusServiceUnavailable, "IP blocking is not enabled")
		return
	}
	ip, ok := blockedIPParam(w, r)
	if !ok {
		return
	}
	blocked, err := h.Blocks.IsBlocked(r.Context(), ip)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BlockedIPResponse{Success: true, IP: ip, Blocked: blocked})
}

// UnblockIP lifts a block early, e.g. for a ward office behind one NAT address.
func (h *Handler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	if h.Blocks == nil {
		writeError(w, http.StatusServiceUnavailable, "IP blocking is not enabled")
		return
	}
	ip, ok := blockedIPParam(w, r)
	if !ok {
		return
	}
	if err := h.Blocks.Unblock(r.Context(), ip); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.log.Info("ip unblocked", zap.String("ip", ip), zap.String("admin_id", middleware.UserID(r.Context())))
	writeJSON(w, http.StatusOK, BlockedIPResponse{Success: true, Message: "IP address unblocked", IP: ip, Blocked: false})
}
