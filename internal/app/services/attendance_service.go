package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/facever"
	"github.com/emre/presentia/internal/pkg/metrics"
	"github.com/emre/presentia/internal/pkg/websocket"
)

// The service depends on narrow views of its collaborators so the redemption
// protocol can be exercised against in-memory fakes.

type sessionFinder interface {
	FindRedeemableByCode(ctx context.Context, code string, now time.Time) (*models.ClassSession, error)
	FindLatestByCode(ctx context.Context, code string) (*models.ClassSession, error)
	GetSessionByID(ctx context.Context, id int64) (*models.ClassSession, error)
	GetClassByID(ctx context.Context, id int64) (*models.Class, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, classID int64) (bool, error)
}

type attendanceStore interface {
	InsertRecord(ctx context.Context, record *models.AttendanceRecord) (int64, error)
	UpsertManualRecord(ctx context.Context, studentID, sessionID int64, reason string) (int64, error)
	ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error)
	CountDuplicateStudents(ctx context.Context, sessionID int64) (int64, error)
	DeleteAllForSession(ctx context.Context, sessionID int64) (int64, error)
}

type userFinder interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type reportStore interface {
	CreateReport(ctx context.Context, report *models.ExpiredCodeReport) (int64, error)
	GetReportByID(ctx context.Context, id int64) (*models.ExpiredCodeReport, error)
	ListPendingForFaculty(ctx context.Context, facultyID int64) ([]models.ExpiredCodeReport, error)
	CloseReport(ctx context.Context, id, reviewerID int64, status models.ReportStatus) error
}

type biometricGates interface {
	FaceGate(ctx context.Context, userID int64, image string, descriptor []float64) (facever.Result, error)
	FingerprintVerify(ctx context.Context, user *models.User, response []byte, submittedChallenge string) ([]byte, error)
}

type feedPublisher interface {
	PublishAttendance(event *websocket.AttendanceEvent)
}

// AttendanceService runs the redemption protocol: code gate, enrollment gate,
// then the biometric gates demanded by the active policy, and only then the
// insert whose unique constraint is the final word on double marking.
type AttendanceService struct {
	sessionRepo    sessionFinder
	enrollmentRepo enrollmentChecker
	attendanceRepo attendanceStore
	userRepo       userFinder
	reportRepo     reportStore
	biometrics     biometricGates
	feed           feedPublisher
	policy         models.BiometricPolicy
	logger         zerolog.Logger
}

// NewAttendanceService creates a new AttendanceService
func NewAttendanceService(
	sessionRepo sessionFinder,
	enrollmentRepo enrollmentChecker,
	attendanceRepo attendanceStore,
	userRepo userFinder,
	reportRepo reportStore,
	biometrics biometricGates,
	feed feedPublisher,
	policy models.BiometricPolicy,
	logger zerolog.Logger,
) *AttendanceService {
	return &AttendanceService{
		sessionRepo:    sessionRepo,
		enrollmentRepo: enrollmentRepo,
		attendanceRepo: attendanceRepo,
		userRepo:       userRepo,
		reportRepo:     reportRepo,
		biometrics:     biometrics,
		feed:           feed,
		policy:         policy,
		logger:         logger,
	}
}

// gateOutcome accumulates what the biometric gates established about one
// redemption attempt.
type gateOutcome struct {
	faceVerified        bool
	faceScore           *float64
	fingerprintVerified bool
	credentialID        []byte
	warning             string
}

// MarkAttendance redeems a session code. Gate order is fixed: the code must
// be live, the student enrolled, then the biometric proofs checked under the
// active policy. The insert runs last so a rejected attempt leaves no record.
func (s *AttendanceService) MarkAttendance(ctx context.Context, studentID int64, req *dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error) {
	session, err := s.redeemableSession(ctx, req.Code)
	if err != nil {
		metrics.VerificationFailures.WithLabelValues("code").Inc()
		return nil, err
	}

	enrolled, err := s.enrollmentRepo.IsEnrolled(ctx, studentID, session.ClassID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		metrics.VerificationFailures.WithLabelValues("enrollment").Inc()
		return nil, apperrors.ErrNotEnrolledInClass
	}

	student, err := s.userRepo.GetUserByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.runGates(ctx, student, req)
	if err != nil {
		return nil, err
	}

	record := &models.AttendanceRecord{
		StudentID:               studentID,
		SessionID:               session.ID,
		Status:                  models.StatusPresent,
		FaceVerified:            outcome.faceVerified,
		FaceMatchScore:          outcome.faceScore,
		FingerprintVerified:     outcome.fingerprintVerified,
		FingerprintCredentialID: outcome.credentialID,
	}

	id, err := s.attendanceRepo.InsertRecord(ctx, record)
	if err != nil {
		return nil, err
	}

	metrics.AttendanceMarked.WithLabelValues(string(models.StatusPresent)).Inc()
	s.logger.Info().
		Int64("attendanceID", id).
		Int64("studentID", studentID).
		Int64("sessionID", session.ID).
		Bool("faceVerified", outcome.faceVerified).
		Bool("fingerprintVerified", outcome.fingerprintVerified).
		Msg("Attendance marked")

	now := time.Now()
	s.publish(session, student, id, models.StatusPresent, now)

	return &dto.MarkAttendanceResponse{
		AttendanceID:        id,
		Timestamp:           now,
		FaceVerified:        outcome.faceVerified,
		FaceMatchScore:      outcome.faceScore,
		FingerprintVerified: outcome.fingerprintVerified,
		Warning:             outcome.warning,
	}, nil
}

// redeemableSession resolves a code to a live session, distinguishing an
// expired code from one that never existed.
func (s *AttendanceService) redeemableSession(ctx context.Context, code string) (*models.ClassSession, error) {
	session, err := s.sessionRepo.FindRedeemableByCode(ctx, code, time.Now())
	if err == nil {
		return session, nil
	}

	latest, lookupErr := s.sessionRepo.FindLatestByCode(ctx, code)
	if lookupErr == nil && latest.Expired(time.Now()) {
		return nil, apperrors.ErrSessionExpired
	}
	return nil, err
}

// runGates applies the biometric policy. Both proofs are attempted when
// supplied so the record reflects everything that was established, but only
// the policy decides which failures are fatal.
func (s *AttendanceService) runGates(ctx context.Context, student *models.User, req *dto.MarkAttendanceRequest) (gateOutcome, error) {
	var out gateOutcome

	faceSupplied := req.FaceImage != "" || len(req.FaceDescriptor) > 0
	fingerprintSupplied := len(req.FingerprintAuthResponse) > 0

	if s.policy == models.PolicyBothRequired {
		if !faceSupplied {
			return out, apperrors.NewBadRequestError("A face image or descriptor is required")
		}
		if !fingerprintSupplied {
			return out, apperrors.NewBadRequestError("A fingerprint assertion is required")
		}
	}
	if s.policy == models.PolicyAnyOneRequired && !faceSupplied && !fingerprintSupplied {
		return out, apperrors.NewBadRequestError("At least one biometric proof is required")
	}

	var faceErr, fingerprintErr error

	if faceSupplied {
		result, err := s.biometrics.FaceGate(ctx, student.ID, req.FaceImage, req.FaceDescriptor)
		switch {
		case err != nil:
			faceErr = err
		case result.Mode == facever.ModeDegraded:
			out.warning = result.Warning
			faceErr = apperrors.ErrFaceEngineDegraded
		case !result.Matched:
			score := result.Score
			out.faceScore = &score
			faceErr = apperrors.NewVerificationError(apperrors.ErrFaceMismatch, "Face did not match the enrolled descriptor", result.Score)
		default:
			score := result.Score
			out.faceVerified = true
			out.faceScore = &score
			out.warning = result.Warning
		}
		if faceErr != nil {
			metrics.VerificationFailures.WithLabelValues("face").Inc()
			// Fixed gate order: when face is mandatory its failure ends
			// the attempt before the fingerprint gate runs, so the
			// single-use challenge is not consumed and no counter is
			// persisted for a rejected attempt.
			if s.policy == models.PolicyBothRequired {
				return out, faceErr
			}
		}
	}

	if fingerprintSupplied {
		credentialID, err := s.biometrics.FingerprintVerify(ctx, student, req.FingerprintAuthResponse, req.FingerprintChallenge)
		if err != nil {
			fingerprintErr = err
			metrics.VerificationFailures.WithLabelValues("fingerprint").Inc()
		} else {
			out.fingerprintVerified = true
			out.credentialID = credentialID
		}
	}

	switch s.policy {
	case models.PolicyBothRequired:
		if fingerprintErr != nil {
			return out, fingerprintErr
		}
	case models.PolicyAnyOneRequired:
		if !out.faceVerified && !out.fingerprintVerified {
			if faceErr != nil {
				return out, faceErr
			}
			return out, fingerprintErr
		}
	case models.PolicyOptional:
		// Proofs are recorded when they succeed; failures do not block.
	}

	return out, nil
}

// publish pushes the event to the live feed without blocking the request.
func (s *AttendanceService) publish(session *models.ClassSession, student *models.User, attendanceID int64, status models.AttendanceStatus, at time.Time) {
	s.feed.PublishAttendance(&websocket.AttendanceEvent{
		AttendanceID:  attendanceID,
		StudentID:     student.ID,
		StudentName:   student.FullName(),
		StudentRollNo: student.RollNo,
		SessionID:     session.ID,
		ClassID:       session.ClassID,
		Status:        string(status),
		Timestamp:     at,
	})
}

// ManualMark is the faculty override. It bypasses every biometric gate,
// replaces any existing record for the pair and is permanently labelled
// MANUAL with the stated reason.
func (s *AttendanceService) ManualMark(ctx context.Context, facultyID int64, req *dto.ManualMarkRequest) (int64, error) {
	session, err := s.ownedSession(ctx, facultyID, req.SessionID)
	if err != nil {
		return 0, err
	}

	student, err := s.userRepo.GetUserByID(ctx, req.StudentID)
	if err != nil {
		return 0, err
	}

	enrolled, err := s.enrollmentRepo.IsEnrolled(ctx, student.ID, session.ClassID)
	if err != nil {
		return 0, err
	}
	if !enrolled {
		return 0, apperrors.ErrNotEnrolledInClass
	}

	id, err := s.attendanceRepo.UpsertManualRecord(ctx, student.ID, session.ID, req.Reason)
	if err != nil {
		return 0, err
	}

	metrics.AttendanceMarked.WithLabelValues(string(models.StatusManual)).Inc()
	s.logger.Info().
		Int64("attendanceID", id).
		Int64("studentID", student.ID).
		Int64("sessionID", session.ID).
		Int64("facultyID", facultyID).
		Str("reason", req.Reason).
		Msg("Attendance marked manually")

	s.publish(session, student, id, models.StatusManual, time.Now())
	return id, nil
}

// ListAttendance returns the session's records for the owning faculty member.
func (s *AttendanceService) ListAttendance(ctx context.Context, facultyID, sessionID int64) ([]models.AttendanceRecord, error) {
	if _, err := s.ownedSession(ctx, facultyID, sessionID); err != nil {
		return nil, err
	}
	return s.attendanceRepo.ListBySession(ctx, sessionID)
}

// CleanupDuplicates wipes every record of the session after reporting how
// many students held more than one. Destructive and unrecoverable, so the
// request must carry an explicit confirmation.
func (s *AttendanceService) CleanupDuplicates(ctx context.Context, facultyID, sessionID int64, confirm bool) (*dto.CleanupDuplicatesResponse, error) {
	if _, err := s.ownedSession(ctx, facultyID, sessionID); err != nil {
		return nil, err
	}

	duplicates, err := s.attendanceRepo.CountDuplicateStudents(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !confirm {
		return nil, apperrors.ErrConfirmationMissing
	}

	deleted, err := s.attendanceRepo.DeleteAllForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Warn().
		Int64("sessionID", sessionID).
		Int64("facultyID", facultyID).
		Int64("recordsDeleted", deleted).
		Msg("Session attendance purged")

	return &dto.CleanupDuplicatesResponse{
		DuplicatesFound: duplicates,
		RecordsDeleted:  deleted,
	}, nil
}

// ReportExpiredCode opens the side-channel for a code that lapsed before the
// student could redeem it. The code must actually be expired; a live code is
// redeemed through the normal protocol.
func (s *AttendanceService) ReportExpiredCode(ctx context.Context, studentID int64, req *dto.ReportExpiredCodeRequest) (int64, error) {
	session, err := s.sessionRepo.FindLatestByCode(ctx, req.Code)
	if err != nil {
		return 0, err
	}
	if !session.Expired(time.Now()) {
		return 0, apperrors.NewBadRequestError("The code is still active, mark attendance normally")
	}

	enrolled, err := s.enrollmentRepo.IsEnrolled(ctx, studentID, session.ClassID)
	if err != nil {
		return 0, err
	}
	if !enrolled {
		return 0, apperrors.ErrNotEnrolledInClass
	}

	id, err := s.reportRepo.CreateReport(ctx, &models.ExpiredCodeReport{
		StudentID: studentID,
		SessionID: session.ID,
		Reason:    req.Reason,
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("reportID", id).
		Int64("studentID", studentID).
		Int64("sessionID", session.ID).
		Msg("Expired code report filed")
	return id, nil
}

// ListExpiredReports returns the open reports for the faculty member's classes.
func (s *AttendanceService) ListExpiredReports(ctx context.Context, facultyID int64) ([]models.ExpiredCodeReport, error) {
	return s.reportRepo.ListPendingForFaculty(ctx, facultyID)
}

// ApproveExpiredReport closes a report and writes the MANUAL record the
// student asked for. Never replays the redemption protocol.
func (s *AttendanceService) ApproveExpiredReport(ctx context.Context, facultyID, reportID int64) (int64, error) {
	report, session, err := s.ownedReport(ctx, facultyID, reportID)
	if err != nil {
		return 0, err
	}

	student, err := s.userRepo.GetUserByID(ctx, report.StudentID)
	if err != nil {
		return 0, err
	}

	if err := s.reportRepo.CloseReport(ctx, reportID, facultyID, models.ReportApproved); err != nil {
		return 0, err
	}

	id, err := s.attendanceRepo.UpsertManualRecord(ctx, report.StudentID, report.SessionID, "Expired code report approved")
	if err != nil {
		return 0, err
	}

	metrics.AttendanceMarked.WithLabelValues(string(models.StatusManual)).Inc()
	s.logger.Info().
		Int64("reportID", reportID).
		Int64("attendanceID", id).
		Int64("facultyID", facultyID).
		Msg("Expired code report approved")

	s.publish(session, student, id, models.StatusManual, time.Now())
	return id, nil
}

// RejectExpiredReport closes a report without creating a record.
func (s *AttendanceService) RejectExpiredReport(ctx context.Context, facultyID, reportID int64) error {
	if _, _, err := s.ownedReport(ctx, facultyID, reportID); err != nil {
		return err
	}

	if err := s.reportRepo.CloseReport(ctx, reportID, facultyID, models.ReportRejected); err != nil {
		return err
	}

	s.logger.Info().Int64("reportID", reportID).Int64("facultyID", facultyID).Msg("Expired code report rejected")
	return nil
}

// ownedSession loads a session and verifies class ownership.
func (s *AttendanceService) ownedSession(ctx context.Context, facultyID, sessionID int64) (*models.ClassSession, error) {
	session, err := s.sessionRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	class, err := s.sessionRepo.GetClassByID(ctx, session.ClassID)
	if err != nil {
		return nil, err
	}
	if class.FacultyID != facultyID {
		return nil, apperrors.NewForbiddenError("Only the class owner may manage this session")
	}

	return session, nil
}

// ownedReport loads a report and verifies the reviewer owns the class it
// belongs to.
func (s *AttendanceService) ownedReport(ctx context.Context, facultyID, reportID int64) (*models.ExpiredCodeReport, *models.ClassSession, error) {
	report, err := s.reportRepo.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.ownedSession(ctx, facultyID, report.SessionID)
	if err != nil {
		return nil, nil, err
	}

	return report, session, nil
}
