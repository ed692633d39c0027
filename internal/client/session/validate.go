package session

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dvoronkov/echofeed/internal/client/api"
)

// emailRe accepts the usual local@domain.tld shape without trying to be a
// full RFC 5322 parser.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minNameLen     = 2
	minPasswordLen = 6
)

func validationError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", api.ErrValidation, field, msg)
}

// validateLogin checks login input locally, before any network call.
func validateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return validationError("email", "all fields are required")
	}
	if !emailRe.MatchString(strings.TrimSpace(email)) {
		return validationError("email", "enter a valid email address")
	}
	return nil
}

// validateRegister checks registration input locally. Messages are
// field-specific so the CLI can show them as-is.
func validateRegister(name, email, password string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return validationError("name", "all fields are required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLen {
		return validationError("name", "name must be at least 2 characters")
	}
	if !emailRe.MatchString(strings.TrimSpace(email)) {
		return validationError("email", "enter a valid email address")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return validationError("password", "password must be at least 6 characters")
	}
	return nil
}
