// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User represents one locally known identity.
//
// ExternalID is the identity key assigned by the identity provider (the
// Google "sub", or "github:<id>" for GitHub). The UNIQUE constraint on
// external_id in the DB ensures one external identity maps to exactly one
// local account.
//
// ID is our own surrogate key (xid). It is what we show to clients and put
// into session tokens; the external id never leaves the server.
//
// Profile fields (Email through Avatar) are overwritten on every login.
// Presence fields (Status, LastSeen) are only written by status updates.
type User struct {
	ID         string     `json:"id"         db:"id"`
	ExternalID string     `json:"-"          db:"external_id"`
	Email      string     `json:"email"      db:"email"`
	FullName   string     `json:"fullName"   db:"full_name"`
	FirstName  string     `json:"firstName"  db:"first_name"`
	LastName   string     `json:"lastName"   db:"last_name"`
	Avatar     string     `json:"avatar"     db:"avatar"`
	Status     string     `json:"status"     db:"status"`
	LastSeen   *time.Time `json:"lastSeen"   db:"last_seen"` // nil until the first status update
	CreatedAt  time.Time  `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt"  db:"updated_at"`
}

// Claims is the verified claim set extracted from an identity token.
// Only ExternalID is mandatory; every other field may be empty.
type Claims struct {
	ExternalID string
	Email      string
	FullName   string
	FirstName  string
	LastName   string
	Avatar     string
}

// UserView is the public shape of a logged-in user.
type UserView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// View strips the record down to what clients may see.
func (u *User) View() UserView {
	return UserView{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.DisplayName(),
		Avatar:   u.Avatar,
	}
}

// DisplayName picks the best available name: the full name, then the given
// and family names, then the email. Stored fields are left untouched.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// UserSummary is one row of the user directory (GET /users).
type UserSummary struct {
	ID       string     `json:"id"`
	FullName string     `json:"fullName"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen"`
}
