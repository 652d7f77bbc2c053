package models

import "time"

// User is the authenticated principal. Identity establishment itself is an
// external concern; the core reads role, display fields and the WebAuthn user
// handle from here.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	RollNo         string    `json:"rollNo,omitempty"`
	Role           RoleType  `json:"role"`
	WebAuthnHandle []byte    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FullName returns the display name used in ceremony options and events.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
