package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/app/services"
	"github.com/emre/presentia/internal/middleware"
)

// AttendanceController handles the student-facing redemption endpoints
type AttendanceController struct {
	attendanceService *services.AttendanceService
	logger            zerolog.Logger
}

// NewAttendanceController creates a new AttendanceController
func NewAttendanceController(attendanceService *services.AttendanceService, logger zerolog.Logger) *AttendanceController {
	return &AttendanceController{
		attendanceService: attendanceService,
		logger:            logger,
	}
}

// Mark handles attendance redemption
// @Summary Mark attendance
// @Description Redeems a session code together with the biometric proofs required by the active policy. On failure the response carries the similarity score where applicable.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.MarkAttendanceRequest true "Session code and biometric proofs"
// @Success 200 {object} dto.APIResponse{data=dto.MarkAttendanceResponse} "Attendance recorded"
// @Failure 400 {object} dto.ErrorResponse "Missing proof, malformed request, or expired session code"
// @Failure 403 {object} dto.ErrorResponse "A biometric gate rejected the proof, or student not enrolled in the class"
// @Failure 404 {object} dto.ErrorResponse "No session found for this code, or no biometrics enrolled"
// @Failure 409 {object} dto.ErrorResponse "Attendance already marked"
// @Failure 503 {object} dto.ErrorResponse "Face engine degraded"
// @Router /attendance/mark [post]
func (c *AttendanceController) Mark(ctx *gin.Context) {
	studentID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.MarkAttendanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid mark request payload")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	resp, err := c.attendanceService.MarkAttendance(ctx.Request.Context(), studentID, &req)
	if err != nil {
		c.logger.Debug().Err(err).Int64("studentID", studentID).Msg("Attendance redemption rejected")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// ReportExpired files an expired-code report
// @Summary Report an expired session code
// @Description Opens the side-channel for a code that lapsed before the student could redeem it. Faculty review the report and may mark attendance manually.
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ReportExpiredCodeRequest true "Code and reason"
// @Success 201 {object} dto.APIResponse "Report filed"
// @Failure 400 {object} dto.ErrorResponse "Code is still active"
// @Failure 404 {object} dto.ErrorResponse "No session found for this code"
// @Router /attendance/report-expired [post]
func (c *AttendanceController) ReportExpired(ctx *gin.Context) {
	studentID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.ReportExpiredCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	id, err := c.attendanceService.ReportExpiredCode(ctx.Request.Context(), studentID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(gin.H{"reportId": id}))
}
