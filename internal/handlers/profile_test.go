package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	sentTo     models.VerificationChannel
	sendErr    error
	code       string
	confirmed  models.VerificationChannel
	confirmErr error
}

func (f *fakeVerifier) Send(_ context.Context, userID string, channel models.VerificationChannel) (time.Time, error) {
	f.sentTo = channel
	return testTime.Add(10 * time.Minute), f.sendErr
}

func (f *fakeVerifier) Confirm(_ context.Context, userID string, channel models.VerificationChannel, code string) error {
	f.confirmed = channel
	f.code = code
	return f.confirmErr
}

func TestGetProfile(t *testing.T) {
	h := New(Deps{Profiles: newProfiles()})

	rec := httptest.NewRecorder()
	h.GetProfile(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/profile", nil), citizenID))

	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody(t, rec)["profile"].(map[string]interface{})
	assert.Equal(t, "Asha Rao", p["full_name"])
	assert.Equal(t, false, p["is_admin"])
}

func TestUpdateProfileIgnoresAdminFlag(t *testing.T) {
	profiles := newProfiles()
	h := New(Deps{Profiles: profiles})

	body := map[string]interface{}{"full_name": "Asha R.", "address": "12 MG Road", "is_admin": true}
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, asUser(jsonRequest(t, http.MethodPut, "/api/profile", body), citizenID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asha R.", profiles.updated.FullName)
	require.NotNil(t, profiles.updated.Address)
	assert.Equal(t, "12 MG Road", *profiles.updated.Address)
	assert.Nil(t, profiles.updated.PhoneNumber)
	p := decodeBody(t, rec)["profile"].(map[string]interface{})
	assert.Equal(t, false, p["is_admin"])
}

func TestSendVerification(t *testing.T) {
	verifier := &fakeVerifier{}
	limiter := &fakeLimiter{}
	h := New(Deps{Verifier: verifier, Limiter: limiter})

	r := withParams(asUser(httptest.NewRequest(http.MethodPost, "/x", nil), citizenID), "channel", "email")
	rec := httptest.NewRecorder()
	h.SendVerification(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ChannelEmail, verifier.sentTo)
	assert.Equal(t, []string{services.ActionOTPSend + ":" + citizenID}, limiter.attempts)
	assert.NotEmpty(t, decodeBody(t, rec)["expires_at"])
}

func TestSendVerificationUnknownChannel(t *testing.T) {
	verifier := &fakeVerifier{}
	h := New(Deps{Verifier: verifier})

	r := withParams(asUser(httptest.NewRequest(http.MethodPost, "/x", nil), citizenID), "channel", "fax")
	rec := httptest.NewRecorder()
	h.SendVerification(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, verifier.sentTo)
}

func TestVerificationUnavailableWithoutVerifier(t *testing.T) {
	h := New(Deps{})

	r := withParams(asUser(httptest.NewRequest(http.MethodPost, "/x", nil), citizenID), "channel", "email")
	rec := httptest.NewRecorder()
	h.SendVerification(rec, r)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ConfirmVerification(rec, r)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConfirmVerification(t *testing.T) {
	verifier := &fakeVerifier{}
	limiter := &fakeLimiter{}
	h := New(Deps{Verifier: verifier, Limiter: limiter})

	r := withParams(asUser(jsonRequest(t, http.MethodPost, "/x", VerifyConfirmRequest{Code: "492039"}), citizenID), "channel", "phone")
	rec := httptest.NewRecorder()
	h.ConfirmVerification(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "492039", verifier.code)
	assert.Equal(t, "Phone number verified successfully", decodeBody(t, rec)["message"])
	assert.Equal(t, []string{services.ActionOTPConfirm + ":" + citizenID}, limiter.attempts)
	assert.Equal(t, []string{services.ActionOTPConfirm + ":" + citizenID}, limiter.resets)
}

func TestConfirmVerificationRateLimited(t *testing.T) {
	verifier := &fakeVerifier{}
	limiter := &fakeLimiter{deny: true}
	h := New(Deps{Verifier: verifier, Limiter: limiter})

	for i := 0; i < 3; i++ {
		r := withParams(asUser(jsonRequest(t, http.MethodPost, "/x", VerifyConfirmRequest{Code: "000000"}), citizenID), "channel", "phone")
		rec := httptest.NewRecorder()
		h.ConfirmVerification(rec, r)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	}
	assert.Empty(t, verifier.code)
	assert.Len(t, limiter.attempts, 3)
	assert.Empty(t, limiter.resets)
}

func TestConfirmVerificationWrongCode(t *testing.T) {
	limiter := &fakeLimiter{}
	h := New(Deps{Verifier: &fakeVerifier{confirmErr: services.ErrInvalidOTP}, Limiter: limiter})

	r := withParams(asUser(jsonRequest(t, http.MethodPost, "/x", VerifyConfirmRequest{Code: "000000"}), citizenID), "channel", "email")
	rec := httptest.NewRecorder()
	h.ConfirmVerification(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired verification code", decodeBody(t, rec)["message"])
	assert.Empty(t, limiter.resets)
}
