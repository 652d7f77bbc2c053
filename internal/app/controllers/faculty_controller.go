package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/app/services"
	"github.com/emre/presentia/internal/middleware"
)

// FacultyController handles the faculty supervision surface: opening
// sessions, overrides, duplicate cleanup and expired-code reports
type FacultyController struct {
	sessionService    *services.SessionService
	attendanceService *services.AttendanceService
	logger            zerolog.Logger
}

// NewFacultyController creates a new FacultyController
func NewFacultyController(
	sessionService *services.SessionService,
	attendanceService *services.AttendanceService,
	logger zerolog.Logger,
) *FacultyController {
	return &FacultyController{
		sessionService:    sessionService,
		attendanceService: attendanceService,
		logger:            logger,
	}
}

// StartSession opens an attendance window
// @Summary Start an attendance session
// @Description Opens a time-bounded window for the class and returns the code to display. Earlier sessions keep running on their own clocks.
// @Tags faculty
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.StartSessionRequest true "Class to open a session for"
// @Success 201 {object} dto.APIResponse{data=dto.StartSessionResponse} "Session opened"
// @Failure 403 {object} dto.ErrorResponse "Caller does not own the class"
// @Failure 404 {object} dto.ErrorResponse "Class not found"
// @Router /faculty/start-session [post]
func (c *FacultyController) StartSession(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	resp, err := c.sessionService.StartSession(ctx.Request.Context(), facultyID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(resp))
}

// ManualMark overrides attendance for a student
// @Summary Manually mark attendance
// @Description Bypasses the biometric gates. The record is labelled MANUAL with the stated reason and replaces any existing record for the pair.
// @Tags faculty
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ManualMarkRequest true "Session, student and reason"
// @Success 200 {object} dto.APIResponse "Attendance marked"
// @Failure 403 {object} dto.ErrorResponse "Caller does not own the class or student not enrolled"
// @Failure 404 {object} dto.ErrorResponse "Session or student not found"
// @Router /faculty/manual-mark [post]
func (c *FacultyController) ManualMark(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req dto.ManualMarkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	id, err := c.attendanceService.ManualMark(ctx.Request.Context(), facultyID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(gin.H{"attendanceId": id}))
}

// ListAttendance lists a session's records
// @Summary List session attendance
// @Tags faculty
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Success 200 {object} dto.APIResponse "Attendance records"
// @Failure 403 {object} dto.ErrorResponse "Caller does not own the class"
// @Router /faculty/sessions/{id}/attendance [get]
func (c *FacultyController) ListAttendance(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	sessionID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	records, err := c.attendanceService.ListAttendance(ctx.Request.Context(), facultyID, sessionID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(records))
}

// CleanupDuplicates purges a session's attendance
// @Summary Purge session attendance
// @Description Destructive: wipes every record of the session after reporting how many students held duplicates. Requires confirm=true in the body.
// @Tags faculty
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Session ID"
// @Param request body dto.CleanupDuplicatesRequest true "Confirmation flag"
// @Success 200 {object} dto.APIResponse{data=dto.CleanupDuplicatesResponse} "Purge outcome"
// @Failure 400 {object} dto.ErrorResponse "Confirmation missing"
// @Failure 403 {object} dto.ErrorResponse "Caller does not own the class"
// @Router /faculty/sessions/{id}/cleanup-duplicates [post]
func (c *FacultyController) CleanupDuplicates(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	sessionID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req dto.CleanupDuplicatesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	resp, err := c.attendanceService.CleanupDuplicates(ctx.Request.Context(), facultyID, sessionID, req.Confirm)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// ListExpiredReports lists open expired-code reports
// @Summary List expired-code reports
// @Tags faculty
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Pending reports for the caller's classes"
// @Router /faculty/expired-reports [get]
func (c *FacultyController) ListExpiredReports(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	reports, err := c.attendanceService.ListExpiredReports(ctx.Request.Context(), facultyID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(reports))
}

// ApproveExpiredReport approves a report and writes a MANUAL record
// @Summary Approve an expired-code report
// @Tags faculty
// @Produce json
// @Security BearerAuth
// @Param id path int true "Report ID"
// @Success 200 {object} dto.APIResponse "Report approved, attendance marked"
// @Failure 404 {object} dto.ErrorResponse "Report not found"
// @Failure 409 {object} dto.ErrorResponse "Report already reviewed"
// @Router /faculty/expired-reports/{id}/approve [post]
func (c *FacultyController) ApproveExpiredReport(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	reportID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	attendanceID, err := c.attendanceService.ApproveExpiredReport(ctx.Request.Context(), facultyID, reportID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(gin.H{"attendanceId": attendanceID}))
}

// RejectExpiredReport closes a report without marking attendance
// @Summary Reject an expired-code report
// @Tags faculty
// @Produce json
// @Security BearerAuth
// @Param id path int true "Report ID"
// @Success 200 {object} dto.APIResponse "Report rejected"
// @Failure 404 {object} dto.ErrorResponse "Report not found"
// @Failure 409 {object} dto.ErrorResponse "Report already reviewed"
// @Router /faculty/expired-reports/{id}/reject [post]
func (c *FacultyController) RejectExpiredReport(ctx *gin.Context) {
	facultyID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	reportID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.attendanceService.RejectExpiredReport(ctx.Request.Context(), facultyID, reportID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.SuccessResponse{Message: "Report rejected"}))
}
