package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/app/services"
	"github.com/emre/presentia/internal/middleware"
)

// BiometricController handles enrollment and standalone verification for both
// biometric factors
type BiometricController struct {
	biometricService *services.BiometricService
	logger           zerolog.Logger
}

// NewBiometricController creates a new BiometricController
func NewBiometricController(biometricService *services.BiometricService, logger zerolog.Logger) *BiometricController {
	return &BiometricController{
		biometricService: biometricService,
		logger:           logger,
	}
}

// FingerprintEnrollStart begins a registration ceremony
// @Summary Start fingerprint enrollment
// @Description Issues WebAuthn creation options. The challenge is single-use and expires after a few minutes; complete the ceremony with the enroll/complete endpoint.
// @Tags biometric
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Creation options"
// @Router /fingerprint/enroll/start [post]
func (c *BiometricController) FingerprintEnrollStart(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	options, err := c.biometricService.FingerprintEnrollStart(ctx.Request.Context(), userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(options))
}

// FingerprintEnrollComplete finishes a registration ceremony
// @Summary Complete fingerprint enrollment
// @Description Verifies the authenticator's attestation response against the pending challenge and stores the credential.
// @Tags biometric
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.FingerprintEnrollCompleteRequest true "Attestation response"
// @Success 201 {object} dto.APIResponse{data=dto.CredentialSummary} "Credential enrolled"
// @Failure 400 {object} dto.ErrorResponse "No pending challenge or malformed response"
// @Failure 409 {object} dto.ErrorResponse "Authenticator already registered"
// @Router /fingerprint/enroll/complete [post]
func (c *BiometricController) FingerprintEnrollComplete(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.FingerprintEnrollCompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	summary, err := c.biometricService.FingerprintEnrollComplete(ctx.Request.Context(), userID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(summary))
}

// FingerprintVerifyStart begins an authentication ceremony
// @Summary Start fingerprint verification
// @Description Issues WebAuthn request options restricted to the user's enrolled authenticators.
// @Tags biometric
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Request options"
// @Failure 404 {object} dto.ErrorResponse "No credential enrolled"
// @Router /fingerprint/verify/start [post]
func (c *BiometricController) FingerprintVerifyStart(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	options, err := c.biometricService.FingerprintVerifyStart(ctx.Request.Context(), userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(options))
}

// FingerprintVerifyComplete finishes a standalone verification
// @Summary Complete fingerprint verification
// @Description Validates the signed assertion. Advisory only; attendance redemption runs its own ceremony bound to the session.
// @Tags biometric
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.FingerprintVerifyCompleteRequest true "Assertion response"
// @Success 200 {object} dto.APIResponse{data=dto.FingerprintVerifyResponse} "Assertion verified"
// @Failure 401 {object} dto.ErrorResponse "Assertion rejected"
// @Router /fingerprint/verify/complete [post]
func (c *BiometricController) FingerprintVerifyComplete(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.FingerprintVerifyCompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	resp, err := c.biometricService.FingerprintVerifyStandalone(ctx.Request.Context(), userID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// ListCredentials lists enrolled authenticators
// @Summary List fingerprint credentials
// @Tags biometric
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.CredentialSummary}
// @Router /fingerprint/credentials [get]
func (c *BiometricController) ListCredentials(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	creds, err := c.biometricService.ListCredentials(ctx.Request.Context(), userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(creds))
}

// RevokeCredential soft-deletes an authenticator
// @Summary Revoke a fingerprint credential
// @Description Deactivates the credential. Attendance records referencing it are untouched.
// @Tags biometric
// @Produce json
// @Security BearerAuth
// @Param id path int true "Credential ID"
// @Success 200 {object} dto.APIResponse "Credential revoked"
// @Failure 404 {object} dto.ErrorResponse "Credential not found"
// @Router /fingerprint/credentials/{id} [delete]
func (c *BiometricController) RevokeCredential(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	credentialID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.biometricService.RevokeCredential(ctx.Request.Context(), userID, credentialID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.SuccessResponse{Message: "Credential revoked"}))
}

// FaceEnroll stores an encrypted face descriptor
// @Summary Enroll a face descriptor
// @Description Accepts a descriptor or a raw image. Re-enrollment replaces the previous descriptor in place.
// @Tags biometric
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.FaceEnrollRequest true "Descriptor or image"
// @Success 201 {object} dto.APIResponse "Descriptor enrolled"
// @Failure 400 {object} dto.ErrorResponse "No face, multiple faces or missing capture"
// @Failure 503 {object} dto.ErrorResponse "Face engine degraded"
// @Router /face/enroll [post]
func (c *BiometricController) FaceEnroll(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.FaceEnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	if err := c.biometricService.EnrollFace(ctx.Request.Context(), userID, &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.SuccessResponse{Message: "Face descriptor enrolled"}))
}

// FaceVerify scores a capture against the enrolled descriptor
// @Summary Verify a face capture
// @Description Advisory verification. Returns the score and the active threshold for calibration; never consumes a session code.
// @Tags biometric
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.FaceVerifyRequest true "Descriptor or image"
// @Success 200 {object} dto.APIResponse{data=dto.FaceVerifyResponse} "Verification outcome"
// @Failure 404 {object} dto.ErrorResponse "No face enrolled"
// @Router /face/verify [post]
func (c *BiometricController) FaceVerify(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.FaceVerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	resp, err := c.biometricService.VerifyFace(ctx.Request.Context(), userID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// FaceRevoke disables the enrolled descriptor
// @Summary Revoke the face enrollment
// @Tags biometric
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Face enrollment revoked"
// @Failure 404 {object} dto.ErrorResponse "Nothing enrolled"
// @Router /face [delete]
func (c *BiometricController) FaceRevoke(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	if err := c.biometricService.RevokeFace(ctx.Request.Context(), userID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.SuccessResponse{Message: "Face enrollment revoked"}))
}
