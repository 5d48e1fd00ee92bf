package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProfileResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Profile *models.Profile `json:"profile"`
}

// UpdateProfileRequest omits is_admin and the verified flags on purpose:
// only name, phone and address are owner-editable.
type UpdateProfileRequest struct {
	FullName    string  `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
}

type VerifySendResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyConfirmRequest struct {
	Code string `json:"code"`
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Profile: p})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Profiles.Update(r.Context(), middleware.UserID(r.Context()), models.ProfileUpdate{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Message: "Profile updated successfully", Profile: p})
}

func channelParam(r *http.Request) models.VerificationChannel {
	return models.VerificationChannel(chi.URLParam(r, "channel"))
}

// SendVerification delivers a one-time code to the caller's e-mail or phone.
func (h *Handler) SendVerification(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "Contact verification is not available")
		return
	}
	channel := channelParam(r)
	if !channel.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Message: "Channel must be email or phone", Field: "channel"})
		return
	}
	userID := middleware.UserID(r.Context())
	if !h.allow(w, r, services.ActionOTPSend, userID) {
		return
	}

	expiresAt, err := h.Verifier.Send(r.Context(), userID, channel)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifySendResponse{
		Success:   true,
		Message:   "Verification code sent",
		ExpiresAt: expiresAt,
	})
}

func (h *Handler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "Contact verification is not available")
		return
	}
	var req VerifyConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	channel := channelParam(r)
	userID := middleware.UserID(r.Context())
	if !h.allow(w, r, services.ActionOTPConfirm, userID) {
		return
	}
	if err := h.Verifier.Confirm(r.Context(), userID, channel, req.Code); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if h.Limiter != nil {
		if err := h.Limiter.Reset(r.Context(), services.ActionOTPConfirm, userID); err != nil {
			h.log.Warn("failed to reset otp confirm limit", zap.String("user_id", userID), zap.Error(err))
		}
	}
	msg := "Email verified successfully"
	if channel == models.ChannelPhone {
		msg = "Phone number verified successfully"
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: msg})
}
