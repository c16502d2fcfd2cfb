// Package model defines the data structures used throughout the application.
package model

import "time"

// Identity is an authenticated account as issued by the session provider.
//
// Email is the login name for password accounts. GitHub sign-ins get the
// account's public email, or the GitHub noreply address when it is hidden.
// GitHubID is 0 for accounts that never signed in through GitHub.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CurrentUser is the signed-in identity with its profile username attached.
type CurrentUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
