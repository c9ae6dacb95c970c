// Package domain contains core domain types for the quizhub application.
package domain

import (
	"time"
)

// Account represents a registered user identity, independent of any chat binding.
// The secret is stored as a bcrypt hash and never leaves the server.
type Account struct {
	ID         string    `json:"id"`
	Handle     string    `json:"username"`
	SecretHash string    `json:"-"`
	IsAdmin    bool      `json:"is_admin"`
	CreatedAt  time.Time `json:"created_at"`
}
