// Package handlers holds the HTTP layer: request decoding, one service call,
// and the JSON envelope {"success", "message", ...}.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/content"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/clientip"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes = 1 << 20

	// GenericErrorMessage is all a client learns about an unexpected failure.
	GenericErrorMessage = "Something went wrong, please try again"
)

type SessionStore interface {
	Refresh(ctx context.Context, token string) (*services.IssuedSession, error)
	Invalidate(ctx context.Context, token string) error
}

type Authenticator interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.SignupResult, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, userID string, u models.ProfileUpdate) (*models.Profile, error)
}

type ContactVerifier interface {
	Send(ctx context.Context, userID string, channel models.VerificationChannel) (time.Time, error)
	Confirm(ctx context.Context, userID string, channel models.VerificationChannel, code string) error
}

type ComplaintStore interface {
	Submit(ctx context.Context, userID string, in services.ComplaintInput) (*models.Complaint, bool, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (*models.Complaint, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Complaint, error)
	Get(ctx context.Context, id string, viewer services.Viewer) (*models.Complaint, error)
	ListAll(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, int64, error)
	Advance(ctx context.Context, id, actorID string, expected *models.ComplaintStatus) (*models.Complaint, error)
}

type AdminOperations interface {
	Stats(ctx context.Context) (*models.AdminStats, error)
	Promote(ctx context.Context, req models.PrivilegeRequest) error
	Revoke(ctx context.Context, req models.PrivilegeRequest) error
	AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

type ApplicationIntake interface {
	Submit(ctx context.Context, t models.ApplicationType, raw json.RawMessage, userID, ip string) (*models.ServiceApplication, error)
	ListByUser(ctx context.Context, userID string) ([]models.ServiceApplication, error)
}

type DocumentUploader interface {
	UploadDocument(ctx context.Context, fileHeader *multipart.FileHeader, userID string) (*services.UploadedDocument, error)
}

type Limiter interface {
	Allow(ctx context.Context, action, subject string) services.LimitResult
	Reset(ctx context.Context, action, subject string) error
}

type TextScreener interface {
	Screen(source, subjectID string, texts ...string) services.ScreenResult
}

// IPBlockList manages the per-IP block list kept by the request counter.
type IPBlockList interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
	Unblock(ctx context.Context, ip string) error
}

type ComplaintFeed interface {
	Subscribe(userID string, isAdmin bool) (*services.Subscriber, func())
}

// HealthCheck reports whether one backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Deps wires the handlers to their services. Verifier, Uploader, Mailer,
// Feed and Blocks are optional; their endpoints answer 503 when unset.
type Deps struct {
	Sessions     SessionStore
	Auth         Authenticator
	Profiles     ProfileStore
	Verifier     ContactVerifier
	Complaints   ComplaintStore
	Admin        AdminOperations
	Applications ApplicationIntake
	Uploader     DocumentUploader
	Limiter      Limiter
	Screener     TextScreener
	Mailer       services.Mailer
	Feed         ComplaintFeed
	Blocks       IPBlockList
	Content      *content.Catalogue
	Resolver     clientip.Resolver
	Checks       map[string]HealthCheck

	// AllowedOrigins gates browser WebSocket upgrades.
	AllowedOrigins []string

	ContactInbox  string
	SecureCookies bool
	Log           *zap.Logger
}

type Handler struct {
	Deps
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Deps: d, log: log, upgrader: newFeedUpgrader(d.AllowedOrigins)}
}

// Response is the bare envelope for endpoints without a payload.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse carries the offending field for validation failures.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrNotFound, http.StatusNotFound, "Not found"},
	{services.ErrEmailTaken, http.StatusConflict, "An account with this email already exists"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{services.ErrInvalidSession, http.StatusUnauthorized, "Invalid or expired session"},
	{services.ErrNoTransition, http.StatusConflict, "Complaint is already closed"},
	{services.ErrStatusConflict, http.StatusConflict, "Complaint status changed concurrently"},
	{services.ErrDomainNotAllowed, http.StatusBadRequest, "Admin privileges can only be granted to government email addresses"},
	{services.ErrSelfRevoke, http.StatusBadRequest, "You cannot revoke your own admin privileges"},
	{services.ErrInvalidOTP, http.StatusBadRequest, "Invalid or expired verification code"},
}

// writeServiceError maps a service error to its HTTP status. Anything
// unrecognised is logged in full and answered with GenericErrorMessage.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Message: verr.Message, Field: verr.Field})
		return
	}
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			writeError(w, se.status, se.message)
			return
		}
	}
	h.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, GenericErrorMessage)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// allow counts one attempt against the action limiter and writes 429 when
// the subject is over its budget.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, action, subject string) bool {
	if h.Limiter == nil {
		return true
	}
	res := h.Limiter.Allow(r.Context(), action, subject)
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if res.Allowed {
		return true
	}
	secs := int(res.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "Too many attempts, please try again later")
	return false
}

func (h *Handler) screen(source, subjectID string, texts ...string) {
	if h.Screener != nil {
		h.Screener.Screen(source, subjectID, texts...)
	}
}
