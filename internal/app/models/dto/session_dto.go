package dto

import "time"

// StartSessionRequest opens a time-bounded attendance window for a class.
type StartSessionRequest struct {
	ClassID int64 `json:"classId" binding:"required"`
}

// StartSessionResponse returns the code the faculty displays to the class.
type StartSessionResponse struct {
	SessionID int64     `json:"sessionId"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginRequest authenticates a user.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the bearer token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	Role      string `json:"role"`
}
