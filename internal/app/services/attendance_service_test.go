package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/facever"
	"github.com/emre/presentia/internal/pkg/websocket"
)

// In-memory fakes for the redemption protocol collaborators.

type fakeSessions struct {
	sessions map[string]*models.ClassSession
	byID     map[int64]*models.ClassSession
	classes  map[int64]*models.Class
}

func (f *fakeSessions) FindRedeemableByCode(_ context.Context, code string, now time.Time) (*models.ClassSession, error) {
	s, ok := f.sessions[code]
	if !ok || s.Expired(now) {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) FindLatestByCode(_ context.Context, code string) (*models.ClassSession, error) {
	s, ok := f.sessions[code]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) GetSessionByID(_ context.Context, id int64) (*models.ClassSession, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) GetClassByID(_ context.Context, id int64) (*models.Class, error) {
	c, ok := f.classes[id]
	if !ok {
		return nil, apperrors.ErrClassNotFound
	}
	return c, nil
}

type fakeEnrollments struct {
	enrolled map[[2]int64]bool
}

func (f *fakeEnrollments) IsEnrolled(_ context.Context, studentID, classID int64) (bool, error) {
	return f.enrolled[[2]int64{studentID, classID}], nil
}

type fakeAttendance struct {
	records    []*models.AttendanceRecord
	manual     []string
	duplicates int64
	deleted    int64
	nextID     int64
}

func (f *fakeAttendance) InsertRecord(_ context.Context, record *models.AttendanceRecord) (int64, error) {
	for _, r := range f.records {
		if r.StudentID == record.StudentID && r.SessionID == record.SessionID {
			return 0, apperrors.ErrAlreadyMarked
		}
	}
	f.nextID++
	record.ID = f.nextID
	f.records = append(f.records, record)
	return f.nextID, nil
}

func (f *fakeAttendance) UpsertManualRecord(_ context.Context, studentID, sessionID int64, reason string) (int64, error) {
	f.nextID++
	f.manual = append(f.manual, reason)
	return f.nextID, nil
}

func (f *fakeAttendance) ListBySession(_ context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range f.records {
		if r.SessionID == sessionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAttendance) CountDuplicateStudents(_ context.Context, sessionID int64) (int64, error) {
	return f.duplicates, nil
}

func (f *fakeAttendance) DeleteAllForSession(_ context.Context, sessionID int64) (int64, error) {
	f.deleted = int64(len(f.records))
	f.records = nil
	return f.deleted, nil
}

type fakeUsers struct {
	users map[int64]*models.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return u, nil
}

type fakeReports struct {
	reports map[int64]*models.ExpiredCodeReport
	nextID  int64
}

func (f *fakeReports) CreateReport(_ context.Context, report *models.ExpiredCodeReport) (int64, error) {
	f.nextID++
	report.ID = f.nextID
	report.Status = models.ReportPending
	if f.reports == nil {
		f.reports = make(map[int64]*models.ExpiredCodeReport)
	}
	f.reports[f.nextID] = report
	return f.nextID, nil
}

func (f *fakeReports) GetReportByID(_ context.Context, id int64) (*models.ExpiredCodeReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, apperrors.ErrReportNotFound
	}
	return r, nil
}

func (f *fakeReports) ListPendingForFaculty(_ context.Context, facultyID int64) ([]models.ExpiredCodeReport, error) {
	var out []models.ExpiredCodeReport
	for _, r := range f.reports {
		if r.Status == models.ReportPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReports) CloseReport(_ context.Context, id, reviewerID int64, status models.ReportStatus) error {
	r, ok := f.reports[id]
	if !ok {
		return apperrors.ErrReportNotFound
	}
	if r.Status != models.ReportPending {
		return apperrors.ErrReportAlreadyClosed
	}
	r.Status = status
	r.ReviewedBy = &reviewerID
	return nil
}

type fakeGates struct {
	faceResult      facever.Result
	faceErr         error
	faceCalls       int
	fingerprintErr  error
	fingerprintCred []byte
	fingerprints    int
}

func (f *fakeGates) FaceGate(_ context.Context, userID int64, image string, descriptor []float64) (facever.Result, error) {
	f.faceCalls++
	return f.faceResult, f.faceErr
}

func (f *fakeGates) FingerprintVerify(_ context.Context, user *models.User, response []byte, challenge string) ([]byte, error) {
	f.fingerprints++
	if f.fingerprintErr != nil {
		return nil, f.fingerprintErr
	}
	return f.fingerprintCred, nil
}

type fakeFeed struct {
	events []*websocket.AttendanceEvent
}

func (f *fakeFeed) PublishAttendance(event *websocket.AttendanceEvent) {
	f.events = append(f.events, event)
}

type fixture struct {
	svc        *AttendanceService
	sessions   *fakeSessions
	attendance *fakeAttendance
	gates      *fakeGates
	feed       *fakeFeed
	reports    *fakeReports
}

func newFixture(policy models.BiometricPolicy) *fixture {
	now := time.Now()
	live := &models.ClassSession{ID: 10, ClassID: 100, Code: "a1b2c3", ExpiresAt: now.Add(5 * time.Minute), IsActive: true}
	expired := &models.ClassSession{ID: 11, ClassID: 100, Code: "dead00", ExpiresAt: now.Add(-time.Minute), IsActive: true}

	sessions := &fakeSessions{
		sessions: map[string]*models.ClassSession{"a1b2c3": live, "dead00": expired},
		byID:     map[int64]*models.ClassSession{10: live, 11: expired},
		classes: map[int64]*models.Class{
			100: {ID: 100, Name: "CS101", Code: "CS101", FacultyID: 2},
		},
	}
	attendance := &fakeAttendance{}
	gates := &fakeGates{
		faceResult:      facever.Result{Matched: true, Score: 0.91, Mode: facever.ModeFull},
		fingerprintCred: []byte("cred-1"),
	}
	feed := &fakeFeed{}
	reports := &fakeReports{}

	svc := NewAttendanceService(
		sessions,
		&fakeEnrollments{enrolled: map[[2]int64]bool{{1, 100}: true}},
		attendance,
		&fakeUsers{users: map[int64]*models.User{
			1: {ID: 1, FirstName: "Ada", LastName: "Lovelace", RollNo: "S-0001", Role: models.RoleStudent},
			2: {ID: 2, FirstName: "Alan", LastName: "Turing", Role: models.RoleFaculty},
		}},
		reports,
		gates,
		feed,
		policy,
		zerolog.Nop(),
	)

	return &fixture{svc: svc, sessions: sessions, attendance: attendance, gates: gates, feed: feed, reports: reports}
}

func markRequest() *dto.MarkAttendanceRequest {
	return &dto.MarkAttendanceRequest{
		Code:                    "a1b2c3",
		FaceImage:               "base64-image",
		FingerprintAuthResponse: []byte(`{"id":"cred-1"}`),
		FingerprintChallenge:    "issued-challenge",
	}
}

func TestMarkAttendanceHappyPath(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)

	resp, err := f.svc.MarkAttendance(context.Background(), 1, markRequest())
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	if !resp.FaceVerified || !resp.FingerprintVerified {
		t.Errorf("verified flags = %v/%v, want true/true", resp.FaceVerified, resp.FingerprintVerified)
	}
	if resp.FaceMatchScore == nil || *resp.FaceMatchScore != 0.91 {
		t.Errorf("score = %v, want 0.91", resp.FaceMatchScore)
	}
	if len(f.attendance.records) != 1 {
		t.Fatalf("%d records inserted, want 1", len(f.attendance.records))
	}
	if got := f.attendance.records[0].Status; got != models.StatusPresent {
		t.Errorf("status = %v, want PRESENT", got)
	}
	if len(f.feed.events) != 1 {
		t.Fatalf("%d feed events, want 1", len(f.feed.events))
	}
	if f.feed.events[0].StudentName != "Ada Lovelace" {
		t.Errorf("event name = %q", f.feed.events[0].StudentName)
	}
}

func TestMarkAttendanceUnknownCode(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	req := markRequest()
	req.Code = "nosuch"

	if _, err := f.svc.MarkAttendance(context.Background(), 1, req); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
	if f.gates.faceCalls != 0 || f.gates.fingerprints != 0 {
		t.Error("biometric gates ran before the code gate passed")
	}
}

func TestMarkAttendanceExpiredCodeIsDistinct(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	req := markRequest()
	req.Code = "dead00"

	if _, err := f.svc.MarkAttendance(context.Background(), 1, req); !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Errorf("got %v, want ErrSessionExpired", err)
	}
}

func TestMarkAttendanceNotEnrolled(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)

	_, err := f.svc.MarkAttendance(context.Background(), 99, markRequest())
	if !errors.Is(err, apperrors.ErrUserNotFound) && !errors.Is(err, apperrors.ErrNotEnrolledInClass) {
		t.Errorf("got %v", err)
	}
	if f.gates.faceCalls != 0 {
		t.Error("face gate ran for an unenrolled student")
	}
}

func TestMarkAttendanceFaceMismatchBlocksUnderBothPolicy(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	f.gates.faceResult = facever.Result{Matched: false, Score: 0.31, Mode: facever.ModeFull}

	_, err := f.svc.MarkAttendance(context.Background(), 1, markRequest())
	if !errors.Is(err, apperrors.ErrFaceMismatch) {
		t.Fatalf("got %v, want ErrFaceMismatch", err)
	}
	if len(f.attendance.records) != 0 {
		t.Error("a rejected attempt left a record")
	}
	if len(f.feed.events) != 0 {
		t.Error("a rejected attempt published a feed event")
	}
}

func TestFaceMismatchAbortsBeforeFingerprintGate(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	f.gates.faceResult = facever.Result{Matched: false, Score: 0.31, Mode: facever.ModeFull}

	if _, err := f.svc.MarkAttendance(context.Background(), 1, markRequest()); err == nil {
		t.Fatal("face mismatch accepted")
	}
	if f.gates.fingerprints != 0 {
		t.Errorf("fingerprint gate ran %d time(s) after the face gate failed", f.gates.fingerprints)
	}
}

func TestMissingFaceEnrollmentAbortsBeforeFingerprintGate(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	f.gates.faceErr = apperrors.ErrFaceNotEnrolled

	if _, err := f.svc.MarkAttendance(context.Background(), 1, markRequest()); !errors.Is(err, apperrors.ErrFaceNotEnrolled) {
		t.Fatalf("got %v, want ErrFaceNotEnrolled", err)
	}
	if f.gates.fingerprints != 0 {
		t.Errorf("fingerprint gate ran %d time(s) for a student with no face enrollment", f.gates.fingerprints)
	}
}

func TestDegradedEngineAbortsBeforeFingerprintGate(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	f.gates.faceResult = facever.Result{Mode: facever.ModeDegraded, Warning: "degraded"}

	if _, err := f.svc.MarkAttendance(context.Background(), 1, markRequest()); !errors.Is(err, apperrors.ErrFaceEngineDegraded) {
		t.Fatalf("got %v, want ErrFaceEngineDegraded", err)
	}
	if f.gates.fingerprints != 0 {
		t.Errorf("fingerprint gate ran %d time(s) while the face engine was degraded", f.gates.fingerprints)
	}
}

func TestMarkAttendanceMissingProofUnderBothPolicy(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	req := markRequest()
	req.FingerprintAuthResponse = nil

	if _, err := f.svc.MarkAttendance(context.Background(), 1, req); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Errorf("got %v, want ErrBadRequest", err)
	}
}

func TestMarkAttendanceAnyPolicyAcceptsOneProof(t *testing.T) {
	f := newFixture(models.PolicyAnyOneRequired)
	f.gates.fingerprintErr = apperrors.ErrWebAuthnFailed

	resp, err := f.svc.MarkAttendance(context.Background(), 1, markRequest())
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if !resp.FaceVerified || resp.FingerprintVerified {
		t.Errorf("flags = %v/%v, want face only", resp.FaceVerified, resp.FingerprintVerified)
	}
}

func TestMarkAttendanceAnyPolicyBothFailures(t *testing.T) {
	f := newFixture(models.PolicyAnyOneRequired)
	f.gates.faceResult = facever.Result{Matched: false, Score: 0.2, Mode: facever.ModeFull}
	f.gates.fingerprintErr = apperrors.ErrWebAuthnFailed

	if _, err := f.svc.MarkAttendance(context.Background(), 1, markRequest()); err == nil {
		t.Error("both gates failed but redemption succeeded")
	}
}

func TestMarkAttendanceOptionalPolicyIgnoresFailures(t *testing.T) {
	f := newFixture(models.PolicyOptional)
	f.gates.faceResult = facever.Result{Matched: false, Score: 0.2, Mode: facever.ModeFull}
	f.gates.fingerprintErr = apperrors.ErrWebAuthnFailed

	resp, err := f.svc.MarkAttendance(context.Background(), 1, markRequest())
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if resp.FaceVerified || resp.FingerprintVerified {
		t.Error("failed proofs recorded as verified")
	}
}

func TestMarkAttendanceDegradedEngineBlocksMandatoryGate(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	f.gates.faceResult = facever.Result{Mode: facever.ModeDegraded, Warning: "degraded"}

	if _, err := f.svc.MarkAttendance(context.Background(), 1, markRequest()); !errors.Is(err, apperrors.ErrFaceEngineDegraded) {
		t.Errorf("got %v, want ErrFaceEngineDegraded", err)
	}
}

func TestMarkAttendanceDoubleRedemption(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	ctx := context.Background()

	if _, err := f.svc.MarkAttendance(ctx, 1, markRequest()); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if _, err := f.svc.MarkAttendance(ctx, 1, markRequest()); !errors.Is(err, apperrors.ErrAlreadyMarked) {
		t.Errorf("second redemption: got %v, want ErrAlreadyMarked", err)
	}
}

func TestManualMarkRequiresOwnership(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)

	req := &dto.ManualMarkRequest{SessionID: 10, StudentID: 1, Reason: "Projector failure"}
	if _, err := f.svc.ManualMark(context.Background(), 999, req); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Errorf("got %v, want ErrPermissionDenied", err)
	}
}

func TestManualMarkBypassesGates(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)

	req := &dto.ManualMarkRequest{SessionID: 10, StudentID: 1, Reason: "Device lost"}
	id, err := f.svc.ManualMark(context.Background(), 2, req)
	if err != nil {
		t.Fatalf("ManualMark: %v", err)
	}
	if id == 0 {
		t.Error("no record id returned")
	}
	if f.gates.faceCalls != 0 || f.gates.fingerprints != 0 {
		t.Error("manual mark ran biometric gates")
	}
	if len(f.feed.events) != 1 || f.feed.events[0].Status != string(models.StatusManual) {
		t.Errorf("feed events = %+v", f.feed.events)
	}
}

func TestCleanupDuplicatesRequiresConfirmation(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)

	if _, err := f.svc.CleanupDuplicates(context.Background(), 2, 10, false); !errors.Is(err, apperrors.ErrConfirmationMissing) {
		t.Errorf("got %v, want ErrConfirmationMissing", err)
	}
}

func TestCleanupDuplicatesDeletesEverything(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	ctx := context.Background()

	if _, err := f.svc.MarkAttendance(ctx, 1, markRequest()); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	f.attendance.duplicates = 1

	resp, err := f.svc.CleanupDuplicates(ctx, 2, 10, true)
	if err != nil {
		t.Fatalf("CleanupDuplicates: %v", err)
	}
	if resp.DuplicatesFound != 1 || resp.RecordsDeleted != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if len(f.attendance.records) != 0 {
		t.Error("records survived the purge")
	}
}

func TestReportExpiredCodeRejectsLiveCode(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)

	req := &dto.ReportExpiredCodeRequest{Code: "a1b2c3", Reason: "Too slow"}
	if _, err := f.svc.ReportExpiredCode(context.Background(), 1, req); !errors.Is(err, apperrors.ErrBadRequest) {
		t.Errorf("got %v, want ErrBadRequest", err)
	}
}

func TestExpiredReportApprovalWritesManualRecord(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	ctx := context.Background()

	req := &dto.ReportExpiredCodeRequest{Code: "dead00", Reason: "Network outage in hall"}
	reportID, err := f.svc.ReportExpiredCode(ctx, 1, req)
	if err != nil {
		t.Fatalf("ReportExpiredCode: %v", err)
	}

	if _, err := f.svc.ApproveExpiredReport(ctx, 2, reportID); err != nil {
		t.Fatalf("ApproveExpiredReport: %v", err)
	}

	if len(f.attendance.manual) != 1 {
		t.Fatalf("%d manual records, want 1", len(f.attendance.manual))
	}
	if f.reports.reports[reportID].Status != models.ReportApproved {
		t.Errorf("report status = %v", f.reports.reports[reportID].Status)
	}

	// A closed report cannot be reviewed again.
	if _, err := f.svc.ApproveExpiredReport(ctx, 2, reportID); !errors.Is(err, apperrors.ErrReportAlreadyClosed) {
		t.Errorf("second approval: got %v, want ErrReportAlreadyClosed", err)
	}
}

func TestExpiredReportRejectionLeavesNoRecord(t *testing.T) {
	f := newFixture(models.PolicyBothRequired)
	ctx := context.Background()

	req := &dto.ReportExpiredCodeRequest{Code: "dead00", Reason: "Late arrival"}
	reportID, err := f.svc.ReportExpiredCode(ctx, 1, req)
	if err != nil {
		t.Fatalf("ReportExpiredCode: %v", err)
	}

	if err := f.svc.RejectExpiredReport(ctx, 2, reportID); err != nil {
		t.Fatalf("RejectExpiredReport: %v", err)
	}
	if len(f.attendance.manual) != 0 {
		t.Error("rejection produced an attendance record")
	}
	if f.reports.reports[reportID].Status != models.ReportRejected {
		t.Errorf("report status = %v", f.reports.reports[reportID].Status)
	}
}
