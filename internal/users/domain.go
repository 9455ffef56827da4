// Package users manages administrator accounts and their role assignments.
package users

import "time"

// User is an administrator account. PasswordHash never leaves the package
// boundary; listings carry the resolved role names instead.
type User struct {
	ID           int64
	Email        string
	Name         string
	LastName     string
	PasswordHash string
	Active       bool
	RoleNames    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName returns the user's full name.
func (u User) DisplayName() string {
	if u.LastName == "" {
		return u.Name
	}
	return u.Name + " " + u.LastName
}
