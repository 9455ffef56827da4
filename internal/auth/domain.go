package auth

import "time"

// User represents a user account as stored.
type User struct {
	ID           int64
	Email        string
	Name         string
	LastName     string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
