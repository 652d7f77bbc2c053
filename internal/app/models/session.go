package models

import "time"

// ClassSession is one faculty-opened attendance window. Sessions are never
// deleted or mutated on expiry; they stop being redeemable once ExpiresAt
// passes and remain as audit trail.
type ClassSession struct {
	ID        int64     `json:"id"`
	ClassID   int64     `json:"classId"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsActive  bool      `json:"isActive"`
}

// Expired reports whether the window has closed at the given instant. The
// boundary is strict: a session expiring exactly now is no longer redeemable.
func (s *ClassSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Class is a course offering that students enroll into.
type Class struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	FacultyID int64     `json:"facultyId"`
	CreatedAt time.Time `json:"createdAt"`
}
