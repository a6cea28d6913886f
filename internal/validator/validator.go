package validator

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
)

const (
	maxUsernameLength = 64
	maxPasswordLength = 72
)

// ValidateUsername expects an already trimmed, case-sensitive username with
// no whitespace or control characters.
func ValidateUsername(username string) error {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidUsername
		}
	}
	return nil
}

// ValidatePassword bounds the length at bcrypt's 72 byte input limit.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" || len(password) > maxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
