package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const pqUniqueViolation = "23505"

// AuthService owns account creation and password login.
type AuthService struct {
	db               *sql.DB
	sessions         *SessionManager
	adminDomains     []string
	allowAdminSignup bool
	log              *zap.Logger
}

type AuthOptions struct {
	AdminDomains     []string
	AllowAdminSignup bool
}

func NewAuthService(db *sql.DB, sessions *SessionManager, opts AuthOptions, log *zap.Logger) *AuthService {
	return &AuthService{
		db:               db,
		sessions:         sessions,
		adminDomains:     opts.AdminDomains,
		allowAdminSignup: opts.AllowAdminSignup,
		log:              log,
	}
}

type SignupInput struct {
	Email          string
	Password       string
	FullName       string
	PhoneNumber    string
	RequestedAdmin bool
}

type SignupResult struct {
	User         models.User
	Profile      models.Profile
	AdminGranted bool
}

// ValidateSignup normalises in and checks every field.
func ValidateSignup(in *SignupInput) error {
	in.Email = utils.NormalizeEmail(in.Email)
	in.FullName = utils.SanitizeText(in.FullName)
	in.PhoneNumber = utils.NormalizePhone(in.PhoneNumber)

	if !utils.IsValidEmail(in.Email) {
		return &utils.ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := utils.MinLength("full_name", in.FullName, 2, "Full name must be at least 2 characters"); err != nil {
		return err
	}
	if err := utils.MaxLength("full_name", in.FullName, utils.MaxNameLength, "Full name must be at most 255 characters"); err != nil {
		return err
	}
	if in.PhoneNumber != "" && !utils.IsValidPhoneNumber(in.PhoneNumber) {
		return &utils.ValidationError{Field: "phone_number", Message: "Please enter a valid phone number"}
	}
	return nil
}

// Signup creates a user and their profile atomically. A requested admin
// flag is honoured only when admin signup is enabled and the address is on
// a government domain.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	if err := ValidateSignup(&in); err != nil {
		return nil, err
	}

	grantAdmin := in.RequestedAdmin && s.allowAdminSignup && utils.HasAllowedDomain(in.Email, s.adminDomains)
	if in.RequestedAdmin && !grantAdmin {
		s.log.Info("admin signup request not honoured", zap.String("email", in.Email))
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin signup: %w", err)
	}
	defer tx.Rollback()

	res := &SignupResult{AdminGranted: grantAdmin}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, in.Email, hash).Scan(&res.User.ID, &res.User.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	res.User.Email = in.Email
	res.User.FullName = in.FullName

	var phone *string
	if in.PhoneNumber != "" {
		phone = &in.PhoneNumber
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO user_profiles (id, full_name, phone_number, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+profileColumns, res.User.ID, in.FullName, phone, grantAdmin)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	res.Profile = *p

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit signup: %w", err)
	}
	return res, nil
}

type LoginResult struct {
	User    models.User
	Session *IssuedSession
}

// Login checks credentials and starts a session. Unknown email and wrong
// password return the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.created_at, COALESCE(p.full_name, '')
		FROM users u
		LEFT JOIN user_profiles p ON p.id = u.id
		WHERE u.email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		// Burn comparable time so response latency does not reveal unknown emails.
		utils.VerifyPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := utils.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash unreadable", zap.String("user_id", u.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, u.ID, time.Now().UTC()); err != nil {
		s.log.Warn("failed to record login time", zap.String("user_id", u.ID), zap.Error(err))
	}

	return &LoginResult{User: u, Session: session}, nil
}

// GetUser loads the account behind a session.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.created_at, COALESCE(p.full_name, '')
		FROM users u
		LEFT JOIN user_profiles p ON p.id = u.id
		WHERE u.id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// dummyHash is verified against when the e-mail is unknown.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$2w5Pp0hQ8bC0Gf1yqf8Xq5o7pV3zWm3pL2kQe9j5u0s"
