package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)

// Session and attendance errors
var (
	ErrSessionNotFound    = errors.New("attendance session not found")
	ErrSessionExpired     = errors.New("attendance session code expired")
	ErrNotEnrolledInClass = errors.New("student is not enrolled in this class")
	ErrAlreadyMarked      = errors.New("attendance already marked for this session")
	ErrClassNotFound      = errors.New("class not found")
)

// Biometric enrollment errors
var (
	ErrFaceNotEnrolled        = errors.New("no active face encoding enrolled")
	ErrFingerprintNotEnrolled = errors.New("no active biometric credential enrolled")
	ErrCredentialExists       = errors.New("biometric credential already registered")
	ErrCredentialNotFound     = errors.New("biometric credential not found")
)

// Verification errors
var (
	ErrFaceMismatch       = errors.New("face did not match enrolled descriptor")
	ErrNoFaceDetected     = errors.New("no face detected in image")
	ErrMultipleFaces      = errors.New("multiple faces detected in image")
	ErrFaceEngineDegraded = errors.New("face engine running degraded, cannot satisfy mandatory gate")
	ErrWebAuthnFailed     = errors.New("webauthn verification failed")
	ErrCloneDetected      = errors.New("authenticator signature counter did not advance")
	ErrChallengeNotFound  = errors.New("challenge not found or already consumed")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrChallengeMismatch  = errors.New("submitted challenge does not match issued challenge")
	ErrDecryptionFailed   = errors.New("descriptor decryption failed")
)

// Workflow errors
var (
	ErrReportNotFound      = errors.New("expired code report not found")
	ErrReportAlreadyClosed = errors.New("expired code report already reviewed")
	ErrConfirmationMissing = errors.New("destructive action requires explicit confirmation")
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// NewVerificationError wraps a biometric verification failure together with the
// numeric score that produced it, so the caller can surface actionable feedback.
func NewVerificationError(err error, message string, score float64) error {
	return &CustomError{
		Err:     err,
		Message: message,
		Details: map[string]interface{}{"score": score},
	}
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err       error
	Message   string
	StatusMsg string
	Code      string
	Details   map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// WithStatusMsg adds a user-friendly status message
func (e *CustomError) WithStatusMsg(msg string) *CustomError {
	e.StatusMsg = msg
	return e
}
