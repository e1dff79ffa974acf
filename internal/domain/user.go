// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"unicode/utf8"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

// User is the identity attached to a connection at handshake time.
// It never changes for the lifetime of that connection.
type User struct {
	ID       UserID `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"name"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id, email, username string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(username) > MaxUsernameLen {
		cut := MaxUsernameLen
		for cut > 0 && !utf8.RuneStart(username[cut]) {
			cut--
		}
		username = username[:cut]
	}
	return &User{ID: UserID(id), Email: email, Username: username}, nil
}
