package util

import (
	"errors"
	"strings"
)

// Validation errors returned by the profile field validators. Callers map them
// to localized messages with errors.Is.
var (
	ErrEmpty           = errors.New("value is required")
	ErrWhitespace      = errors.New("value must not contain spaces or tabs")
	ErrConsecutiveDots = errors.New("value must not contain consecutive dots")
	ErrEdgeDot         = errors.New("value must not start or end with a dot")
	ErrInvalidUserChar = errors.New("value must not contain '@' or ':'")
)

// ValidateProfileID checks a Host alias. Wildcards are accepted by OpenSSH but
// such a block never becomes a concrete profile, see HasWildcard.
func ValidateProfileID(id string) error {
	if id == "" {
		return ErrEmpty
	}
	if strings.ContainsAny(id, " \t") {
		return ErrWhitespace
	}
	return nil
}

// HasWildcard reports whether an alias is a pattern rather than a name.
func HasWildcard(id string) bool {
	return strings.ContainsAny(id, "*?!")
}

// ValidateAddress checks a HostName value.
//
// The check is syntactic only: it rejects what OpenSSH itself would reject or
// silently misinterpret (whitespace, empty labels) and does not resolve the
// name.
//
// Examples:
//
//	ValidateAddress("10.0.0.5")        → nil
//	ValidateAddress("db.example.com")  → nil
//	ValidateAddress("db..example.com") → ErrConsecutiveDots
//	ValidateAddress(".example.com")    → ErrEdgeDot
//	ValidateAddress("my host")         → ErrWhitespace
func ValidateAddress(addr string) error {
	if addr == "" {
		return ErrEmpty
	}
	if strings.TrimSpace(addr) != addr || strings.ContainsAny(addr, " \t") {
		return ErrWhitespace
	}
	if strings.Contains(addr, "..") {
		return ErrConsecutiveDots
	}
	if strings.HasPrefix(addr, ".") || strings.HasSuffix(addr, ".") {
		return ErrEdgeDot
	}
	return nil
}

// ValidateUser checks an optional User value. Empty is valid.
func ValidateUser(user string) error {
	if user == "" {
		return nil
	}
	if strings.ContainsAny(user, " \t") {
		return ErrWhitespace
	}
	if strings.ContainsAny(user, "@:") {
		return ErrInvalidUserChar
	}
	return nil
}
