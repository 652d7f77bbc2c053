package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emre/presentia/internal/app/controllers"
	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/middleware"
	"github.com/emre/presentia/internal/pkg/websocket"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	attendanceController *controllers.AttendanceController,
	biometricController *controllers.BiometricController,
	facultyController *controllers.FacultyController,
	wsHandler *websocket.Handler,
	authMiddleware *middleware.AuthMiddleware,
	markLimiter *middleware.TokenBucket,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authController.Login)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		// Attendance redemption. Rate limited per IP so session codes
		// cannot be brute forced.
		attendance := authenticated.Group("/attendance")
		attendance.Use(authMiddleware.RoleRequired(string(models.RoleStudent)))
		{
			attendance.POST("/mark", markLimiter.GinMiddleware(), attendanceController.Mark)
			attendance.POST("/report-expired", attendanceController.ReportExpired)
		}

		// Biometric enrollment and advisory verification
		fingerprint := authenticated.Group("/fingerprint")
		{
			fingerprint.POST("/enroll/start", biometricController.FingerprintEnrollStart)
			fingerprint.POST("/enroll/complete", biometricController.FingerprintEnrollComplete)
			fingerprint.POST("/verify/start", biometricController.FingerprintVerifyStart)
			fingerprint.POST("/verify/complete", biometricController.FingerprintVerifyComplete)
			fingerprint.GET("/credentials", biometricController.ListCredentials)
			fingerprint.DELETE("/credentials/:id", biometricController.RevokeCredential)
		}

		face := authenticated.Group("/face")
		{
			face.POST("/enroll", biometricController.FaceEnroll)
			face.POST("/verify", biometricController.FaceVerify)
			face.DELETE("", biometricController.FaceRevoke)
		}

		// Faculty supervision surface
		faculty := authenticated.Group("/faculty")
		faculty.Use(authMiddleware.RoleRequired(string(models.RoleFaculty)))
		{
			faculty.POST("/start-session", facultyController.StartSession)
			faculty.POST("/manual-mark", facultyController.ManualMark)
			faculty.GET("/sessions/:id/attendance", facultyController.ListAttendance)
			faculty.POST("/sessions/:id/cleanup-duplicates", facultyController.CleanupDuplicates)
			faculty.GET("/expired-reports", facultyController.ListExpiredReports)
			faculty.POST("/expired-reports/:id/approve", facultyController.ApproveExpiredReport)
			faculty.POST("/expired-reports/:id/reject", facultyController.RejectExpiredReport)
		}
	}

	// Live attendance feed; authenticates via token query parameter because
	// browsers cannot set headers on upgrade requests.
	router.GET("/ws/attendance", authMiddleware.JWTAuth(), wsHandler.HandleAttendanceFeed)

	// Operational endpoints
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, dto.NewAPIResponse(gin.H{"status": "ok"}))
	})
}
