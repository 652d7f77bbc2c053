package dto

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized machine-readable error codes
type ErrorCode string

// Standard error codes for the application
const (
	// Authentication / authorization
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrorCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrorCodeExpiredToken       ErrorCode = "EXPIRED_TOKEN"
	ErrorCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden          ErrorCode = "FORBIDDEN"

	// Validation
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Session / attendance
	ErrorCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeSessionExpired  ErrorCode = "SESSION_EXPIRED"
	ErrorCodeNotEnrolled     ErrorCode = "NOT_ENROLLED_IN_CLASS"
	ErrorCodeAlreadyMarked   ErrorCode = "ALREADY_MARKED"

	// Biometric enrollment
	ErrorCodeFaceNotEnrolled        ErrorCode = "FACE_NOT_ENROLLED"
	ErrorCodeFingerprintNotEnrolled ErrorCode = "FINGERPRINT_NOT_ENROLLED"
	ErrorCodeCredentialExists       ErrorCode = "CREDENTIAL_ALREADY_REGISTERED"
	ErrorCodeCredentialNotFound     ErrorCode = "CREDENTIAL_NOT_FOUND"

	// Biometric verification
	ErrorCodeFaceVerificationFailed        ErrorCode = "FACE_VERIFICATION_FAILED"
	ErrorCodeNoFaceDetected                ErrorCode = "NO_FACE_DETECTED"
	ErrorCodeMultipleFaces                 ErrorCode = "MULTIPLE_FACES_DETECTED"
	ErrorCodeFaceEngineDegraded            ErrorCode = "FACE_ENGINE_DEGRADED"
	ErrorCodeFingerprintVerificationFailed ErrorCode = "FINGERPRINT_VERIFICATION_FAILED"
	ErrorCodeChallengeExpired              ErrorCode = "CHALLENGE_EXPIRED"

	// Generic
	ErrorCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodeConfirmRequired  ErrorCode = "CONFIRMATION_REQUIRED"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorCodeInternalServer   ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrorCodeDatabaseError    ErrorCode = "DATABASE_ERROR"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

// Severity levels
const (
	ErrorSeverityInfo     ErrorSeverity = "INFO"
	ErrorSeverityWarning  ErrorSeverity = "WARNING"
	ErrorSeverityError    ErrorSeverity = "ERROR"
	ErrorSeverityCritical ErrorSeverity = "CRITICAL"
)

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code     ErrorCode     `json:"code" example:"FACE_NOT_ENROLLED"`
	Message  string        `json:"message" example:"No active face encoding enrolled, enroll before marking attendance"`
	Field    string        `json:"field,omitempty" example:"code"`
	Severity ErrorSeverity `json:"severity" example:"ERROR"`
	// Score carries the numeric similarity on biometric failures so the client
	// can give calibration feedback. The threshold itself is not exposed here.
	Score *float64 `json:"score,omitempty" example:"0.41"`
	// Expired tags expiry rejections distinctly so the client can offer the
	// expired-code report flow instead of a generic error.
	Expired   bool        `json:"expired,omitempty" example:"true"`
	Details   interface{} `json:"details,omitempty"`
	DebugInfo string      `json:"debugInfo,omitempty"`
}

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success   bool         `json:"success" example:"false"`
	Error     *ErrorDetail `json:"error"`
	Timestamp time.Time    `json:"timestamp" example:"2026-02-11T09:30:05.123Z"`
}

// NewErrorDetail creates a new error detail
func NewErrorDetail(code ErrorCode, message string) *ErrorDetail {
	return &ErrorDetail{
		Code:     code,
		Message:  message,
		Severity: ErrorSeverityError,
	}
}

// WithField adds a field name to the error detail
func (e *ErrorDetail) WithField(field string) *ErrorDetail {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error
func (e *ErrorDetail) WithSeverity(severity ErrorSeverity) *ErrorDetail {
	e.Severity = severity
	return e
}

// WithScore attaches the similarity score of a failed biometric check
func (e *ErrorDetail) WithScore(score float64) *ErrorDetail {
	e.Score = &score
	return e
}

// WithExpired tags the error as an expiry rejection
func (e *ErrorDetail) WithExpired() *ErrorDetail {
	e.Expired = true
	return e
}

// WithDetails adds additional details to the error
func (e *ErrorDetail) WithDetails(details interface{}) *ErrorDetail {
	e.Details = details
	return e
}

// WithDebugInfo adds debug information (for development/testing only)
func (e *ErrorDetail) WithDebugInfo(format string, args ...interface{}) *ErrorDetail {
	e.DebugInfo = fmt.Sprintf(format, args...)
	return e
}

// HandleValidationError converts a binding failure into an error detail.
func HandleValidationError(err error) *ErrorDetail {
	detail := NewErrorDetail(ErrorCodeValidationFailed, "Invalid request format")
	return detail.WithDetails(err.Error())
}

// NewErrorResponse creates a standard error response
func NewErrorResponse(errorDetail *ErrorDetail) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     errorDetail,
		Timestamp: time.Now(),
	}
}
