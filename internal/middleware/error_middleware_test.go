package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/pkg/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(t *testing.T, err error) (int, *dto.ErrorResponse) {
	t.Helper()

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	HandleAPIError(c, err)

	var body dto.ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	return recorder.Code, &body
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   dto.ErrorCode
	}{
		{"invalid credentials", apperrors.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials},
		{"forbidden", apperrors.ErrPermissionDenied, http.StatusForbidden, dto.ErrorCodeForbidden},
		{"session expired", apperrors.ErrSessionExpired, http.StatusBadRequest, dto.ErrorCodeSessionExpired},
		{"session not found", apperrors.ErrSessionNotFound, http.StatusNotFound, dto.ErrorCodeSessionNotFound},
		{"not enrolled", apperrors.ErrNotEnrolledInClass, http.StatusForbidden, dto.ErrorCodeNotEnrolled},
		{"already marked", apperrors.ErrAlreadyMarked, http.StatusConflict, dto.ErrorCodeAlreadyMarked},
		{"face not enrolled", apperrors.ErrFaceNotEnrolled, http.StatusNotFound, dto.ErrorCodeFaceNotEnrolled},
		{"fingerprint not enrolled", apperrors.ErrFingerprintNotEnrolled, http.StatusNotFound, dto.ErrorCodeFingerprintNotEnrolled},
		{"credential exists", apperrors.ErrCredentialExists, http.StatusConflict, dto.ErrorCodeCredentialExists},
		{"face mismatch", apperrors.ErrFaceMismatch, http.StatusForbidden, dto.ErrorCodeFaceVerificationFailed},
		{"engine degraded", apperrors.ErrFaceEngineDegraded, http.StatusServiceUnavailable, dto.ErrorCodeFaceEngineDegraded},
		{"clone detected", apperrors.ErrCloneDetected, http.StatusForbidden, dto.ErrorCodeFingerprintVerificationFailed},
		{"challenge consumed", apperrors.ErrChallengeNotFound, http.StatusBadRequest, dto.ErrorCodeChallengeExpired},
		{"report closed", apperrors.ErrReportAlreadyClosed, http.StatusConflict, dto.ErrorCodeConflict},
		{"confirm required", apperrors.ErrConfirmationMissing, http.StatusBadRequest, dto.ErrorCodeConfirmRequired},
		{"unknown error", json.Unmarshal([]byte("{"), new(struct{})), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := respond(t, tc.err)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
			if body.Error == nil {
				t.Fatal("missing error detail")
			}
			if body.Error.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", body.Error.Code, tc.wantCode)
			}
			if body.Success {
				t.Error("success flag set on an error envelope")
			}
		})
	}
}

func TestSessionExpiredCarriesExpiredTag(t *testing.T) {
	_, body := respond(t, apperrors.ErrSessionExpired)
	if !body.Error.Expired {
		t.Error("expiry rejection not tagged expired")
	}
}

func TestVerificationErrorCarriesScore(t *testing.T) {
	err := apperrors.NewVerificationError(apperrors.ErrFaceMismatch, "Face did not match the enrolled descriptor", 0.43)

	status, body := respond(t, err)
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
	if body.Error.Score == nil || *body.Error.Score != 0.43 {
		t.Errorf("score = %v, want 0.43", body.Error.Score)
	}
	if body.Error.Message != "Face did not match the enrolled descriptor" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestCustomErrorMessageOverridesDefault(t *testing.T) {
	err := apperrors.NewForbiddenError("Only the class owner may manage this session")

	status, body := respond(t, err)
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
	if body.Error.Message != "Only the class owner may manage this session" {
		t.Errorf("message = %q", body.Error.Message)
	}
}
