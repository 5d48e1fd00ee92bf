package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/google/uuid"
)

const profileColumns = `id, full_name, phone_number, address, is_admin, email_verified, phone_verified, created_at, updated_at`

// ProfileService reads and updates user profiles. The admin flag is never
// written here; see AdminService.
type ProfileService struct {
	db *sql.DB
}

func NewProfileService(db *sql.DB) *ProfileService {
	return &ProfileService{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var phone, address sql.NullString
	if err := row.Scan(&p.ID, &p.FullName, &phone, &address, &p.IsAdmin, &p.EmailVerified, &p.PhoneVerified, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PhoneNumber = nullableString(phone)
	p.Address = nullableString(address)
	return &p, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// IsAdmin reads the admin flag fresh from the store.
func (s *ProfileService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, `SELECT is_admin FROM user_profiles WHERE id = $1`, userID).Scan(&isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return isAdmin, nil
}

// ValidateProfileUpdate sanitises u in place and checks its fields.
func ValidateProfileUpdate(u *models.ProfileUpdate) error {
	u.FullName = utils.SanitizeText(u.FullName)
	if err := utils.MinLength("full_name", u.FullName, 2, "Full name must be at least 2 characters"); err != nil {
		return err
	}
	if err := utils.MaxLength("full_name", u.FullName, utils.MaxNameLength, "Full name must be at most 255 characters"); err != nil {
		return err
	}
	if u.PhoneNumber != nil {
		phone := utils.NormalizePhone(*u.PhoneNumber)
		if phone == "" {
			u.PhoneNumber = nil
		} else if !utils.IsValidPhoneNumber(phone) {
			return &utils.ValidationError{Field: "phone_number", Message: "Please enter a valid phone number"}
		} else {
			u.PhoneNumber = &phone
		}
	}
	if u.Address != nil {
		addr := utils.SanitizeText(*u.Address)
		if addr == "" {
			u.Address = nil
		} else {
			u.Address = &addr
		}
	}
	return nil
}

// Update changes name, phone and address. A changed phone number loses its
// verified flag.
func (s *ProfileService) Update(ctx context.Context, userID string, u models.ProfileUpdate) (*models.Profile, error) {
	if err := ValidateProfileUpdate(&u); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE user_profiles
		SET full_name = $2,
			phone_verified = phone_verified AND phone_number IS NOT DISTINCT FROM $3,
			phone_number = $3,
			address = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileColumns, userID, u.FullName, u.PhoneNumber, u.Address)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
