package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/dberrors"
	"github.com/emre/presentia/internal/pkg/logger"
)

// attendanceUniqueConstraint is the (student_id, session_id) uniqueness
// constraint. It is the backstop for concurrent redemption attempts: both may
// pass every gate, only one insert wins.
const attendanceUniqueConstraint = "attendance_student_session_key"

// AttendanceRepository handles attendance-record database operations
type AttendanceRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewAttendanceRepository creates a new AttendanceRepository
func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InsertRecord commits one redemption outcome. A uniqueness violation on
// (student, session) maps to ErrAlreadyMarked, distinct from every upstream
// rejection.
func (r *AttendanceRepository) InsertRecord(ctx context.Context, record *models.AttendanceRecord) (int64, error) {
	now := time.Now()

	sql, args, err := r.sb.Insert("attendance").
		Columns("student_id", "session_id", "status", "face_verified", "face_match_score",
			"fingerprint_verified", "fingerprint_credential_id", "is_overridden", "override_reason",
			"is_duplicate", "created_at").
		Values(record.StudentID, record.SessionID, record.Status, record.FaceVerified, record.FaceMatchScore,
			record.FingerprintVerified, record.FingerprintCredentialID, record.IsOverridden, record.OverrideReason,
			false, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building insert attendance SQL")
		return 0, fmt.Errorf("failed to build insert attendance query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsDuplicateConstraintError(err, attendanceUniqueConstraint) {
			return 0, apperrors.ErrAlreadyMarked
		}
		logger.Error().Err(err).
			Int64("studentID", record.StudentID).
			Int64("sessionID", record.SessionID).
			Msg("Error executing insert attendance query")
		return 0, fmt.Errorf("error inserting attendance record: %w", err)
	}

	record.ID = id
	record.CreatedAt = now
	return id, nil
}

// UpsertManualRecord writes a faculty override. Unlike the automated path, an
// existing record for the pair is intentionally replaced.
func (r *AttendanceRepository) UpsertManualRecord(ctx context.Context, studentID, sessionID int64, reason string) (int64, error) {
	now := time.Now()

	sql, args, err := r.sb.Insert("attendance").
		Columns("student_id", "session_id", "status", "face_verified", "fingerprint_verified",
			"is_overridden", "override_reason", "is_duplicate", "created_at").
		Values(studentID, sessionID, models.StatusManual, false, false, true, reason, false, now).
		Suffix("ON CONFLICT ON CONSTRAINT " + attendanceUniqueConstraint + ` DO UPDATE SET
			status = EXCLUDED.status,
			is_overridden = TRUE,
			override_reason = EXCLUDED.override_reason,
			created_at = EXCLUDED.created_at
			RETURNING id`).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building manual mark SQL")
		return 0, fmt.Errorf("failed to build manual mark query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Int64("sessionID", sessionID).Msg("Error executing manual mark query")
		return 0, fmt.Errorf("error writing manual attendance record: %w", err)
	}

	return id, nil
}

// ListBySession returns all records for a session, newest first.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.AttendanceRecord, error) {
	sql, args, err := r.sb.Select("id", "student_id", "session_id", "status", "face_verified",
		"face_match_score", "fingerprint_verified", "fingerprint_credential_id", "is_overridden",
		"override_reason", "is_duplicate", "created_at").
		From("attendance").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list attendance SQL")
		return nil, fmt.Errorf("failed to build list attendance query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("sessionID", sessionID).Msg("Error executing list attendance query")
		return nil, fmt.Errorf("error listing attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.SessionID, &rec.Status, &rec.FaceVerified,
			&rec.FaceMatchScore, &rec.FingerprintVerified, &rec.FingerprintCredentialID, &rec.IsOverridden,
			&rec.OverrideReason, &rec.IsDuplicate, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning attendance row: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountDuplicateStudents counts students holding more than one record within a
// session. Possible only via the override path or a bug.
func (r *AttendanceRepository) CountDuplicateStudents(ctx context.Context, sessionID int64) (int64, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		FromSelect(
			r.sb.Select("student_id").
				From("attendance").
				Where(squirrel.Eq{"session_id": sessionID}).
				GroupBy("student_id").
				Having("COUNT(*) > 1"),
			"dup",
		).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building duplicate count SQL")
		return 0, fmt.Errorf("failed to build duplicate count query: %w", err)
	}

	var count int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		logger.Error().Err(err).Int64("sessionID", sessionID).Msg("Error executing duplicate count query")
		return 0, fmt.Errorf("error counting duplicates: %w", err)
	}

	return count, nil
}

// DeleteAllForSession removes every attendance record in a session. Destructive
// and session-wide: the duplicate-cleanup flow requires a full restart after.
func (r *AttendanceRepository) DeleteAllForSession(ctx context.Context, sessionID int64) (int64, error) {
	sql, args, err := r.sb.Delete("attendance").
		Where(squirrel.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete attendance SQL")
		return 0, fmt.Errorf("failed to build delete attendance query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("sessionID", sessionID).Msg("Error executing delete attendance query")
		return 0, fmt.Errorf("error deleting attendance records: %w", err)
	}

	deleted := cmdTag.RowsAffected()
	logger.Info().Int64("sessionID", sessionID).Int64("deletedCount", deleted).Msg("Purged attendance for session")

	return deleted, nil
}
