package models

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent RoleType = "STUDENT"
	RoleFaculty RoleType = "FACULTY"
)

// AttendanceStatus is the recorded outcome for one student in one session.
// Absence is represented by omission, not by a row.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "PRESENT"
	StatusManual  AttendanceStatus = "MANUAL"
)

// BiometricPolicy names which verification gates the redemption protocol
// enforces. A tagged enum instead of interacting boolean flags, so invalid
// combinations cannot be expressed.
type BiometricPolicy string

const (
	// PolicyBothRequired demands face match and WebAuthn assertion.
	PolicyBothRequired BiometricPolicy = "both"
	// PolicyAnyOneRequired accepts either proof.
	PolicyAnyOneRequired BiometricPolicy = "any"
	// PolicyOptional records proofs when supplied but gates on none.
	PolicyOptional BiometricPolicy = "optional"
)

// ParseBiometricPolicy maps a config string to a policy, defaulting to the
// strictest setting.
func ParseBiometricPolicy(s string) BiometricPolicy {
	switch BiometricPolicy(s) {
	case PolicyAnyOneRequired:
		return PolicyAnyOneRequired
	case PolicyOptional:
		return PolicyOptional
	default:
		return PolicyBothRequired
	}
}

// ReportStatus tracks the expired-code report workflow.
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportApproved ReportStatus = "APPROVED"
	ReportRejected ReportStatus = "REJECTED"
)
