package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNameLength matches the VARCHAR(255) name and subject columns.
const MaxNameLength = 255

var (
	emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	// E.164: optional +, no leading zero, up to 15 digits.
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// ValidationError is a field-level input error shown next to the offending field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NormalizeEmail lowercases and trims an e-mail address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	return len(email) <= 254 && emailRegex.MatchString(strings.TrimSpace(email))
}

// IsValidPhoneNumber accepts E.164-style numbers; spaces, dashes and
// parentheses are ignored.
func IsValidPhoneNumber(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}

// NormalizePhone strips common separators from a phone number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// HasAllowedDomain reports whether email ends with one of the given suffixes
// (e.g. "@gov.in"). Comparison is case-insensitive.
func HasAllowedDomain(email string, suffixes []string) bool {
	email = NormalizeEmail(email)
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.HasSuffix(email, s) {
			return true
		}
	}
	return false
}

// MaxLength rejects values longer than n runes.
func MaxLength(field, value string, n int, message string) error {
	if utf8.RuneCountInString(value) > n {
		return &ValidationError{Field: field, Message: message}
	}
	return nil
}

// MinLength checks the trimmed rune length of value.
func MinLength(field, value string, n int, message string) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		return &ValidationError{Field: field, Message: message}
	}
	return nil
}
