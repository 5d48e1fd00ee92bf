package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrNoTransition       = errors.New("complaint is already closed")
	ErrStatusConflict     = errors.New("complaint status changed concurrently")
	ErrDomainNotAllowed   = errors.New("admin privileges can only be granted to government email addresses")
	ErrSelfRevoke         = errors.New("you cannot revoke your own admin privileges")
	ErrInvalidOTP         = errors.New("invalid or expired verification code")
)
