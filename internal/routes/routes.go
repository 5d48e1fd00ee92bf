package routes

import (
	"net/http"

	"github.com/AnshRaj112/municipal-portal-backend/internal/handlers"
	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/clientip"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options controls the middleware stack around the API.
type Options struct {
	Sessions       middleware.SessionValidator
	Admins         middleware.AdminChecker
	AllowedOrigins []string

	// Production enables security headers, the host check and per-IP token buckets.
	Production  bool
	AllowedHost string
	Resolver    clientip.Resolver

	// Blocker is the Redis-backed per-IP request counter; nil disables it.
	Blocker *middleware.IPBlocker

	Log *zap.Logger
}

// NewRouter builds the full HTTP surface.
func NewRouter(h *handlers.Handler, opts Options) *chi.Mux {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Session(opts.Sessions, log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	if opts.Production {
		for _, mw := range middleware.ProductionSecurity(opts.AllowedHost, opts.Resolver) {
			r.Use(mw)
		}
	}

	// Health and metrics sit outside the IP blocker so probes are never refused.
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.Blocker != nil {
			r.Use(opts.Blocker.Middleware)
		}
		SetupRoutes(r, h, opts.Admins, log)
	})
	return r
}

// SetupRoutes registers every API endpoint on r.
func SetupRoutes(r chi.Router, h *handlers.Handler, admins middleware.AdminChecker, log *zap.Logger) {
	// Auth
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/session", h.CurrentSession)
		r.With(middleware.RequireAuth).Post("/refresh", h.Refresh)
	})

	// Static content
	r.Get("/api/departments", h.ListDepartments)
	r.Get("/api/departments/{id}", h.GetDepartment)
	r.Get("/api/zonal-offices", h.ListZonalOffices)
	r.Get("/api/zonal-offices/{id}", h.GetZonalOffice)
	r.Get("/api/services", h.ListServices)
	r.Get("/api/complaint-categories", h.ListComplaintCategories)
	r.Post("/api/contact", h.SubmitContact)

	// Service applications: submitting works signed out, listing does not.
	r.Post("/api/services/{type}/applications", h.SubmitApplication)

	// Signed-in citizens
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/api/profile", h.GetProfile)
		r.Put("/api/profile", h.UpdateProfile)
		r.Post("/api/profile/verify/{channel}/send", h.SendVerification)
		r.Post("/api/profile/verify/{channel}/confirm", h.ConfirmVerification)

		r.Post("/api/complaints", h.SubmitComplaint)
		r.Get("/api/complaints", h.ListMyComplaints)
		r.Get("/api/complaints/{id}", h.GetComplaint)

		r.Get("/api/services/applications", h.ListMyApplications)
		r.Post("/api/upload", h.UploadDocument)

		r.Get("/ws/complaints", h.ComplaintFeed)
	})

	// Admin
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(admins, log))

		r.Get("/complaints", h.AdminListComplaints)
		r.Post("/complaints/{id}/advance", h.AdvanceComplaint)
		r.Get("/stats", h.AdminStats)
		r.Post("/promote", h.PromoteAdmin)
		r.Post("/revoke", h.RevokeAdmin)
		r.Get("/audit", h.AdminAudit)
		r.Get("/blocked-ips/{ip}", h.GetBlockedIP)
		r.Delete("/blocked-ips/{ip}", h.UnblockIP)
	})
}
