// Package models defines the canonical client-side entities of the echofeed
// application and the wire DTOs received from the remote API, together with
// the normalization that maps one onto the other.
package models

import "strings"

// User is the authenticated identity as the client sees it.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// APIUser is the user object as returned by the auth endpoints.
type APIUser struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// EmailLocalPart returns the part of an email address before the '@',
// or the whole string when no '@' is present.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// NormalizeUser converts an API user into the canonical User shape.
// The display name falls back through display_name, username and the
// email local part, in that order.
func NormalizeUser(u APIUser) User {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	if name == "" {
		name = EmailLocalPart(u.Email)
	}
	username := u.Username
	if username == "" {
		username = EmailLocalPart(u.Email)
	}
	return User{
		ID:          u.UserID,
		Name:        name,
		Email:       u.Email,
		Username:    username,
		DisplayName: u.DisplayName,
	}
}
