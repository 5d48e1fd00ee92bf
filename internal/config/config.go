package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI            string
	PostgresURI         string
	RedisURI            string
	JWTSecret           string
	EncryptionKey       string // base64 32 bytes; encrypts OTP secrets at rest
	Port                string
	FrontendURL         string
	AllowedOrigins      []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	Host                string // Raw HOST env (e.g. https://api.municipalcorp.gov.in)
	AllowedHost         string // Hostname only for strict host check (production only)
	Environment         string // ENV: production, development, etc.
	TrustProxy          bool   // honour X-Forwarded-For when resolving client IPs

	SessionTTL       time.Duration
	AllowAdminSignup bool
	AdminDomains     []string // e-mail suffixes allowed to hold admin privilege

	ActionRateLimitMax    int
	ActionRateLimitWindow time.Duration

	SendgridAPIKey string
	MailFrom       string
	ContactInbox   string
	OTPIssuer      string

	ContentFile string // optional YAML overriding the embedded catalogue
}

// DefaultAdminDomains are the government suffixes accepted for admin accounts.
var DefaultAdminDomains = []string{"@municipal.gov", "@gov.in", "@city.gov"}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	// AllowedHost is only set in production; host check is skipped in development
	var allowedHost string
	if env == "production" {
		allowedHost = bareHost(host)
	}

	allowedOrigins := parseList(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:5173"), getEnv("FRONTEND_URL_2", ""), getEnv("FRONTEND_URL_3", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	// A backend host such as api.municipalcorp.gov.in implies the portal lives on the parent domain.
	hostForCORS := bareHost(host)
	if hostForCORS != "" && hostForCORS != "localhost" {
		parts := strings.Split(hostForCORS, ".")
		if len(parts) >= 3 {
			domain := strings.Join(parts[1:], ".")
			for _, origin := range []string{"https://" + domain, "https://www." + domain} {
				if !containsFold(allowedOrigins, origin) {
					allowedOrigins = append(allowedOrigins, origin)
				}
			}
		}
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173"}
	}

	adminDomains := parseList(strings.ToLower(getEnv("ADMIN_EMAIL_DOMAINS", "")))
	if len(adminDomains) == 0 {
		adminDomains = append([]string(nil), DefaultAdminDomains...)
	}
	for i, d := range adminDomains {
		if !strings.HasPrefix(d, "@") {
			adminDomains[i] = "@" + d
		}
	}

	return &Config{
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/municipal")),
		PostgresURI:         getEnv("POSTGRES_URI", "postgres://localhost:5432/municipal?sslmode=disable"),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),
		Host:                host,
		AllowedHost:         allowedHost,
		Environment:         env,
		TrustProxy:          getEnvBool("TRUST_PROXY", false),
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		AllowedOrigins:      allowedOrigins,
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_HOURS", 7*24)) * time.Hour,
		AllowAdminSignup: getEnvBool("ALLOW_ADMIN_SIGNUP", false),
		AdminDomains:     adminDomains,

		ActionRateLimitMax:    getEnvInt("ACTION_RATE_LIMIT_MAX", 5),
		ActionRateLimitWindow: time.Duration(getEnvInt("ACTION_RATE_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,

		SendgridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailFrom:       getEnv("MAIL_FROM", "noreply@municipalcorp.gov.in"),
		ContactInbox:   getEnv("CONTACT_INBOX", "info@municipalcorp.gov.in"),
		OTPIssuer:      getEnv("OTP_ISSUER", "Municipal Corporation"),

		ContentFile: getEnv("CONTENT_FILE", ""),
	}
}

// bareHost strips scheme, path and port from a URL-ish host string.
func bareHost(h string) string {
	for _, prefix := range []string{"https://", "http://"} {
		h = strings.TrimPrefix(h, prefix)
	}
	if idx := strings.Index(h, "/"); idx != -1 {
		h = h[:idx]
	}
	if idx := strings.Index(h, ":"); idx != -1 {
		h = h[:idx]
	}
	return strings.TrimSpace(h)
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsFold(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return defaultValue
	}
	return b
}
