package models

import (
	"time"
)

// User is an account. The password hash is never serialised.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the one-to-one companion of a User.
type Profile struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	PhoneNumber   *string   `json:"phone_number"`
	Address       *string   `json:"address"`
	IsAdmin       bool      `json:"is_admin"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileUpdate holds the only fields an owner may change on their profile.
type ProfileUpdate struct {
	FullName    string
	PhoneNumber *string
	Address     *string
}
