package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnshRaj112/municipal-portal-backend/internal/config"
	"github.com/AnshRaj112/municipal-portal-backend/internal/content"
	"github.com/AnshRaj112/municipal-portal-backend/internal/database"
	"github.com/AnshRaj112/municipal-portal-backend/internal/handlers"
	"github.com/AnshRaj112/municipal-portal-backend/internal/jobs"
	"github.com/AnshRaj112/municipal-portal-backend/internal/logger"
	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/routes"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/clientip"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
)

const (
	shutdownTimeout    = 10 * time.Second
	applicationListTTL = 2 * time.Minute
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	zl, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zl.Sync()

	if cfg.JWTSecret == "your-secret-key-change-in-production" {
		if cfg.IsProduction() {
			zl.Fatal("JWT_SECRET must be set in production")
		}
		zl.Warn("⚠️  JWT_SECRET not set, using the development default")
	}

	// Connect to PostgreSQL
	zl.Info("Connecting to PostgreSQL...", zap.String("uri", logger.MaskURI(cfg.PostgresURI)))
	if err := database.ConnectPostgres(cfg.PostgresURI, zl); err != nil {
		zl.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	zl.Info("Connecting to Redis...", zap.String("uri", logger.MaskURI(cfg.RedisURI)))
	if err := database.ConnectRedis(cfg.RedisURI, zl); err != nil {
		zl.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB
	zl.Info("Connecting to MongoDB...", zap.String("uri", logger.MaskURI(cfg.MongoURI)))
	if err := database.ConnectMongo(cfg.MongoURI, zl); err != nil {
		zl.Error("Failed to connect to MongoDB", zap.Error(err))
		zl.Info("Troubleshooting tips:")
		zl.Info("1. Check if your IP is whitelisted in MongoDB Atlas")
		zl.Info("2. Verify your connection string format (should use mongodb+srv:// for Atlas)")
		zl.Info("3. Ensure username and password are correct")
		zl.Fatal("MongoDB is required for service applications")
	}
	defer database.DisconnectMongo()

	catalogue, err := content.Load(cfg.ContentFile)
	if err != nil {
		zl.Fatal("Failed to load content catalogue", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.PostgresDB
	rdb := database.RedisClient

	// Core services
	sessions := services.NewSessionManager(rdb, cfg.JWTSecret, cfg.SessionTTL)
	auth := services.NewAuthService(db, sessions, services.AuthOptions{
		AdminDomains:     cfg.AdminDomains,
		AllowAdminSignup: cfg.AllowAdminSignup,
	}, zl)
	profiles := services.NewProfileService(db)
	hub := services.NewComplaintHub(rdb, zl)
	hub.Start(ctx)
	complaints := services.NewComplaintService(db, hub, zl)
	admin := services.NewAdminService(db, cfg.AdminDomains, zl)
	limiter := services.NewActionLimiter(rdb, cfg.ActionRateLimitMax, cfg.ActionRateLimitWindow, zl)

	var mailer services.Mailer
	if cfg.SendgridAPIKey != "" {
		mailer = services.NewSendgridMailer(cfg.SendgridAPIKey, cfg.MailFrom, cfg.OTPIssuer)
		zl.Info("✅ SendGrid mailer configured")
	} else {
		mailer = services.NewLogMailer(zl)
		zl.Warn("⚠️  SENDGRID_API_KEY not set. Outgoing mail will only be logged.")
	}

	// OTP secrets are sealed at rest, so verification needs ENCRYPTION_KEY.
	var verifier handlers.ContactVerifier
	var otpCleaner jobs.OTPCleaner
	if cfg.EncryptionKey == "" {
		zl.Warn("⚠️  WARNING: ENCRYPTION_KEY not set. Contact verification will not be available.")
		zl.Info("   To generate a key, run: openssl rand -base64 32")
	} else if box, err := utils.NewSecretBox(cfg.EncryptionKey); err != nil {
		zl.Warn("⚠️  WARNING: ENCRYPTION_KEY is invalid. Contact verification will not be available.", zap.Error(err))
	} else {
		otpService := services.NewOTPService(db, box, mailer, cfg.OTPIssuer, zl)
		verifier = otpService
		otpCleaner = otpService
		zl.Info("✅ Encryption key configured")
	}

	appStore := services.NewMongoApplicationStore(database.MongoDB)
	if err := appStore.EnsureIndexes(ctx); err != nil {
		zl.Warn("⚠️  WARNING: failed to ensure MongoDB application indexes", zap.Error(err))
	} else {
		zl.Info("✅ MongoDB application indexes ensured")
	}
	applications := services.NewApplicationService(
		services.NewCachedApplicationStore(appStore, services.NewCache(rdb), applicationListTTL, zl),
		zl,
	)

	var uploader handlers.DocumentUploader
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			zl.Warn("Failed to initialize Cloudinary. File uploads will not be available", zap.Error(err))
		} else {
			uploader = cld
			zl.Info("✅ Cloudinary service initialized")
		}
	} else {
		zl.Warn("Cloudinary credentials not found. File uploads will not be available")
	}

	scheduler, err := jobs.NewScheduler(otpCleaner, admin, zl)
	if err != nil {
		zl.Fatal("Failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	resolver := clientip.Resolver{TrustProxy: cfg.TrustProxy}
	blocker := middleware.NewIPBlocker(rdb, resolver, zl)
	h := handlers.New(handlers.Deps{
		Sessions:     sessions,
		Auth:         auth,
		Profiles:     profiles,
		Verifier:     verifier,
		Complaints:   complaints,
		Admin:        admin,
		Applications: applications,
		Uploader:     uploader,
		Limiter:      limiter,
		Screener:     services.NewScreener(zl),
		Mailer:       mailer,
		Feed:         hub,
		Blocks:       blocker,
		Content:      catalogue,
		Resolver:     resolver,
		Checks: map[string]handlers.HealthCheck{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"mongodb":  func(ctx context.Context) error { return database.MongoClient.Ping(ctx, nil) },
		},
		AllowedOrigins: cfg.AllowedOrigins,
		ContactInbox:   cfg.ContactInbox,
		SecureCookies:  cfg.IsProduction(),
		Log:            zl,
	})

	router := routes.NewRouter(h, routes.Options{
		Sessions:       sessions,
		Admins:         profiles,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
		AllowedHost:    cfg.AllowedHost,
		Resolver:       resolver,
		Blocker:        blocker,
		Log:            zl,
	})
	if cfg.IsProduction() {
		zl.Info("✅ Production security enabled (security headers, host check, per-IP + login rate limiting)")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("🚀 Municipal portal backend running", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
	}
}
