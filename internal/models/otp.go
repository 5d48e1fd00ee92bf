package models

import "time"

// VerificationChannel is the contact detail an OTP proves ownership of.
type VerificationChannel string

const (
	ChannelEmail VerificationChannel = "email"
	ChannelPhone VerificationChannel = "phone"
)

func (c VerificationChannel) Valid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

// OTPVerification is a pending or consumed verification code. Secret is stored encrypted.
type OTPVerification struct {
	ID          string
	UserID      string
	Channel     VerificationChannel
	Destination string
	Secret      string
	ExpiresAt   time.Time
	IsVerified  bool
	Attempts    int
	CreatedAt   time.Time
}
