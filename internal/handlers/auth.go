package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"go.uber.org/zap"
)

type SignupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"full_name"`
	PhoneNumber  string `json:"phone_number"`
	RequestAdmin bool   `json:"request_admin"`
}

type SignupResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	User         *models.User    `json:"user,omitempty"`
	Profile      *models.Profile `json:"profile,omitempty"`
	AdminGranted bool            `json:"admin_granted"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Token     string          `json:"token,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	User      *models.User    `json:"user,omitempty"`
	Profile   *models.Profile `json:"profile,omitempty"`
	IsAdmin   bool            `json:"is_admin"`
}

type SessionResponse struct {
	Success       bool            `json:"success"`
	Authenticated bool            `json:"authenticated"`
	User          *models.User    `json:"user"`
	Profile       *models.Profile `json:"profile"`
	IsAdmin       bool            `json:"is_admin"`
}

type RefreshResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *services.IssuedSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Signup creates a citizen account. Admin is granted only when the server
// allows it and the e-mail carries a government domain.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Auth.Signup(r.Context(), services.SignupInput{
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		PhoneNumber:    req.PhoneNumber,
		RequestedAdmin: req.RequestAdmin,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	msg := "Account created successfully. Please sign in."
	if req.RequestAdmin && !res.AdminGranted {
		msg = "Account created as a citizen account. Admin access must be granted by an existing administrator."
	}
	writeJSON(w, http.StatusCreated, SignupResponse{
		Success:      true,
		Message:      msg,
		User:         &res.User,
		Profile:      &res.Profile,
		AdminGranted: res.AdminGranted,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	profile, err := h.Profiles.Get(r.Context(), res.User.ID)
	if err != nil {
		h.log.Warn("profile fetch after login failed", zap.String("user_id", res.User.ID), zap.Error(err))
		profile = nil
	}

	h.setSessionCookie(w, res.Session)
	writeJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Message:   "Signed in successfully",
		Token:     res.Session.Token,
		ExpiresAt: &res.Session.ExpiresAt,
		User:      &res.User,
		Profile:   profile,
		IsAdmin:   profile != nil && profile.IsAdmin,
	})
}

// Logout always succeeds: the cookie is cleared even if the session store
// cannot be reached.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.ExtractToken(r); token != "" {
		if err := h.Sessions.Invalidate(r.Context(), token); err != nil {
			h.log.Warn("session invalidation failed", zap.Error(err))
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Signed out successfully"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	issued, err := h.Sessions.Refresh(r.Context(), middleware.ExtractToken(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.setSessionCookie(w, issued)
	writeJSON(w, http.StatusOK, RefreshResponse{
		Success:   true,
		Message:   "Session refreshed",
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}

// CurrentSession reports who is signed in. A profile that cannot be loaded
// is reported as null rather than failing the request.
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusOK, SessionResponse{Success: true})
		return
	}

	user, err := h.Auth.GetUser(r.Context(), userID)
	if err != nil {
		h.log.Warn("session user lookup failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, SessionResponse{Success: true})
		return
	}

	resp := SessionResponse{Success: true, Authenticated: true, User: user}
	profile, err := h.Profiles.Get(r.Context(), userID)
	if err != nil {
		h.log.Error("session profile fetch failed", zap.String("user_id", userID), zap.Error(err))
	} else {
		resp.Profile = profile
		resp.IsAdmin = profile.IsAdmin
	}
	writeJSON(w, http.StatusOK, resp)
}
