package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/pkg/apperrors"
)

// HandleAPIError maps service errors onto the HTTP error envelope. Biometric
// verification failures carry the similarity score; expiry rejections are
// tagged so the client can offer the expired-code report flow.
func HandleAPIError(c *gin.Context, err error) {
	status, detail := classify(err)

	var custom *apperrors.CustomError
	if errors.As(err, &custom) {
		if custom.Message != "" {
			detail.Message = custom.Message
		}
		if score, ok := custom.Details["score"].(float64); ok {
			detail = detail.WithScore(score)
		}
	}

	c.JSON(status, dto.NewErrorResponse(detail))
}

func classify(err error) (int, *dto.ErrorDetail) {
	switch {
	// Authentication
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired")
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token")
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, "Permission denied")

	// Session and attendance
	case errors.Is(err, apperrors.ErrSessionExpired):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeSessionExpired, "The session code has expired").WithExpired()
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeSessionNotFound, "No session found for this code")
	case errors.Is(err, apperrors.ErrNotEnrolledInClass):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeNotEnrolled, "Student is not enrolled in this class")
	case errors.Is(err, apperrors.ErrAlreadyMarked):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeAlreadyMarked, "Attendance already marked for this session")
	case errors.Is(err, apperrors.ErrClassNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Class not found")

	// Biometric enrollment
	case errors.Is(err, apperrors.ErrFaceNotEnrolled):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeFaceNotEnrolled, "No face descriptor enrolled, enroll before verifying")
	case errors.Is(err, apperrors.ErrFingerprintNotEnrolled):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeFingerprintNotEnrolled, "No biometric credential enrolled, enroll before verifying")
	case errors.Is(err, apperrors.ErrCredentialExists):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeCredentialExists, "This authenticator is already registered")
	case errors.Is(err, apperrors.ErrCredentialNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeCredentialNotFound, "Biometric credential not found")

	// Biometric verification
	case errors.Is(err, apperrors.ErrFaceMismatch):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeFaceVerificationFailed, "Face verification failed")
	case errors.Is(err, apperrors.ErrNoFaceDetected):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeNoFaceDetected, "No face detected in the image")
	case errors.Is(err, apperrors.ErrMultipleFaces):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeMultipleFaces, "Multiple faces detected in the image")
	case errors.Is(err, apperrors.ErrFaceEngineDegraded):
		return http.StatusServiceUnavailable, dto.NewErrorDetail(dto.ErrorCodeFaceEngineDegraded, "Face verification is temporarily unavailable")
	case errors.Is(err, apperrors.ErrCloneDetected):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeFingerprintVerificationFailed, "Authenticator rejected, signature counter did not advance")
	case errors.Is(err, apperrors.ErrChallengeNotFound):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeChallengeExpired, "No pending challenge, restart the ceremony")
	case errors.Is(err, apperrors.ErrChallengeExpired):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeChallengeExpired, "The challenge expired, restart the ceremony").WithExpired()
	case errors.Is(err, apperrors.ErrChallengeMismatch):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeFingerprintVerificationFailed, "Submitted challenge does not match the issued challenge")
	case errors.Is(err, apperrors.ErrWebAuthnFailed):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeFingerprintVerificationFailed, "Fingerprint verification failed")
	case errors.Is(err, apperrors.ErrDecryptionFailed):
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Stored descriptor could not be read")

	// Workflow
	case errors.Is(err, apperrors.ErrReportNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Expired code report not found")
	case errors.Is(err, apperrors.ErrReportAlreadyClosed):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, "Report has already been reviewed")
	case errors.Is(err, apperrors.ErrConfirmationMissing):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeConfirmRequired, "This action is destructive, set confirm to proceed")

	// Generic
	case errors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "User not found")
	case errors.Is(err, apperrors.ErrValidationFailed), errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid request")
	case errors.Is(err, apperrors.ErrResourceNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Resource not found")
	case errors.Is(err, apperrors.ErrResourceAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, "Conflict")
	default:
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}
}
