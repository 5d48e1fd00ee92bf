package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	OTPValidity = 10 * time.Minute
	otpDigits   = otp.DigitsSix

	// MaxOTPAttempts wrong codes burn a pending code.
	MaxOTPAttempts = 5
)

var otpOpts = totp.ValidateOpts{
	Period:    uint(OTPValidity / time.Second),
	Skew:      1,
	Digits:    otpDigits,
	Algorithm: otp.AlgorithmSHA1,
}

// verifiedColumn maps a channel to the profile flag it sets.
var verifiedColumn = map[models.VerificationChannel]string{
	models.ChannelEmail: "email_verified",
	models.ChannelPhone: "phone_verified",
}

// SecretSealer encrypts OTP seeds at rest.
type SecretSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// OTPService proves ownership of a profile's e-mail address or phone number
// with a six-digit one-time code.
type OTPService struct {
	db     *sql.DB
	sealer SecretSealer
	mailer Mailer
	issuer string
	log    *zap.Logger
	now    func() time.Time
}

func NewOTPService(db *sql.DB, sealer SecretSealer, mailer Mailer, issuer string, log *zap.Logger) *OTPService {
	return &OTPService{db: db, sealer: sealer, mailer: mailer, issuer: issuer, log: log, now: time.Now}
}

// Send issues a code for channel and delivers it. It returns when the code expires.
func (s *OTPService) Send(ctx context.Context, userID string, channel models.VerificationChannel) (time.Time, error) {
	if !channel.Valid() {
		return time.Time{}, &utils.ValidationError{Field: "channel", Message: "Channel must be email or phone"}
	}

	var email string
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT u.email, p.phone_number
		FROM users u
		JOIN user_profiles p ON p.id = u.id
		WHERE u.id = $1
	`, userID).Scan(&email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load contact details: %w", err)
	}

	destination := email
	if channel == models.ChannelPhone {
		if !phone.Valid || phone.String == "" {
			return time.Time{}, &utils.ValidationError{Field: "phone_number", Message: "Add a phone number to your profile first"}
		}
		destination = phone.String
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: destination,
		Period:      otpOpts.Period,
		Digits:      otpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("generate otp secret: %w", err)
	}
	now := s.now()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, otpOpts)
	if err != nil {
		return time.Time{}, fmt.Errorf("generate otp code: %w", err)
	}
	sealed, err := s.sealer.Seal(key.Secret())
	if err != nil {
		return time.Time{}, fmt.Errorf("seal otp secret: %w", err)
	}

	expiresAt := now.Add(OTPValidity)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO otp_verifications (user_id, channel, destination, secret, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, channel, destination, sealed, expiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("store otp: %w", err)
	}

	if err := s.deliver(ctx, channel, destination, code); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

func (s *OTPService) deliver(ctx context.Context, channel models.VerificationChannel, destination, code string) error {
	if channel == models.ChannelPhone {
		// No SMS gateway is wired; the code is only visible at debug level.
		s.log.Info("SMS delivery not configured", zap.String("destination", maskPhone(destination)))
		s.log.Debug("phone verification code", zap.String("destination", destination), zap.String("code", code))
		return nil
	}
	return s.mailer.Send(ctx, Email{
		To:        destination,
		Subject:   "Your verification code",
		PlainText: fmt.Sprintf("Your %s verification code is %s. It expires in %d minutes.", s.issuer, code, int(OTPValidity.Minutes())),
	})
}

// Confirm checks code against the latest pending code for channel and
// marks the profile contact as verified.
func (s *OTPService) Confirm(ctx context.Context, userID string, channel models.VerificationChannel, code string) error {
	column, ok := verifiedColumn[channel]
	if !ok {
		return &utils.ValidationError{Field: "channel", Message: "Channel must be email or phone"}
	}
	code = strings.TrimSpace(code)
	if len(code) != otpDigits.Length() {
		return ErrInvalidOTP
	}

	var id, sealed string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, secret
		FROM otp_verifications
		WHERE user_id = $1 AND channel = $2 AND is_verified = FALSE AND expires_at > $3 AND attempts < $4
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, channel, s.now(), MaxOTPAttempts).Scan(&id, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}

	secret, err := s.sealer.Open(sealed)
	if err != nil {
		return fmt.Errorf("open otp secret: %w", err)
	}
	valid, err := totp.ValidateCustom(code, secret, s.now(), otpOpts)
	if err != nil || !valid {
		if _, err := s.db.ExecContext(ctx, `UPDATE otp_verifications SET attempts = attempts + 1 WHERE id = $1`, id); err != nil {
			s.log.Warn("failed to count otp attempt", zap.String("otp_id", id), zap.Error(err))
		}
		return ErrInvalidOTP
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verify: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE otp_verifications SET is_verified = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_profiles SET `+column+` = TRUE, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return tx.Commit()
}

// CleanupExpired deletes codes that can no longer be confirmed.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otp_verifications WHERE expires_at < $1 OR is_verified = TRUE`, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup otp: %w", err)
	}
	return res.RowsAffected()
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
