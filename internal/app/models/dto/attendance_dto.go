package dto

import (
	"encoding/json"
	"time"
)

// MarkAttendanceRequest is the redemption submission. The student supplies the
// session code plus biometric proof: either a raw captured image or a
// precomputed descriptor for the face gate, and the WebAuthn assertion with
// the challenge it was issued against for the fingerprint gate.
type MarkAttendanceRequest struct {
	Code                    string          `json:"code" binding:"required"`
	FaceImage               string          `json:"faceImage,omitempty"`
	FaceDescriptor          []float64       `json:"faceDescriptor,omitempty"`
	FingerprintAuthResponse json.RawMessage `json:"fingerprintAuthResponse,omitempty"`
	FingerprintChallenge    string          `json:"fingerprintChallenge,omitempty"`
}

// MarkAttendanceResponse reports a committed redemption.
type MarkAttendanceResponse struct {
	AttendanceID        int64     `json:"attendanceId"`
	Timestamp           time.Time `json:"timestamp"`
	FaceVerified        bool      `json:"faceVerified"`
	FaceMatchScore      *float64  `json:"faceMatchScore,omitempty"`
	FingerprintVerified bool      `json:"fingerprintVerified"`
	Warning             string    `json:"warning,omitempty"`
}

// ManualMarkRequest is the faculty override entry point. It bypasses the
// biometric gates entirely and is recorded as such.
type ManualMarkRequest struct {
	SessionID int64  `json:"sessionId" binding:"required"`
	StudentID int64  `json:"studentId" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

// CleanupDuplicatesRequest guards the destructive session-wide purge.
type CleanupDuplicatesRequest struct {
	Confirm bool `json:"confirm"`
}

// CleanupDuplicatesResponse reports the purge outcome.
type CleanupDuplicatesResponse struct {
	DuplicatesFound int64 `json:"duplicatesFound"`
	RecordsDeleted  int64 `json:"recordsDeleted"`
}

// ReportExpiredCodeRequest opens the side-channel for a lapsed code.
type ReportExpiredCodeRequest struct {
	Code   string `json:"code" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}
