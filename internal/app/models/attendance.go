package models

import "time"

// AttendanceRecord is one student's outcome for one session. Unique on
// (StudentID, SessionID); the storage constraint backing that pair is the
// correctness backstop for concurrent redemption attempts.
type AttendanceRecord struct {
	ID                      int64            `json:"id"`
	StudentID               int64            `json:"studentId"`
	SessionID               int64            `json:"sessionId"`
	Status                  AttendanceStatus `json:"status"`
	FaceVerified            bool             `json:"faceVerified"`
	FaceMatchScore          *float64         `json:"faceMatchScore,omitempty"`
	FingerprintVerified     bool             `json:"fingerprintVerified"`
	FingerprintCredentialID []byte           `json:"-"`
	IsOverridden            bool             `json:"isOverridden"`
	OverrideReason          string           `json:"overrideReason,omitempty"`
	IsDuplicate             bool             `json:"isDuplicate"`
	CreatedAt               time.Time        `json:"createdAt"`
}

// ExpiredCodeReport is the side-channel for students whose code lapsed before
// they could redeem it. Approval produces a MANUAL record, never a retry
// through the redemption protocol.
type ExpiredCodeReport struct {
	ID         int64        `json:"id"`
	StudentID  int64        `json:"studentId"`
	SessionID  int64        `json:"sessionId"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	ReviewedBy *int64       `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time   `json:"reviewedAt,omitempty"`
}
