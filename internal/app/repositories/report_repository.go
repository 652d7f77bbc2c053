package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/logger"
)

// ReportRepository handles expired-code report persistence
type ReportRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var reportColumns = []string{
	"id", "student_id", "session_id", "reason", "status", "reviewed_by", "created_at", "reviewed_at",
}

// CreateReport records a student's claim that a session code expired before
// they could redeem it.
func (r *ReportRepository) CreateReport(ctx context.Context, report *models.ExpiredCodeReport) (int64, error) {
	sql, args, err := r.sb.Insert("expired_code_reports").
		Columns("student_id", "session_id", "reason", "status", "created_at").
		Values(report.StudentID, report.SessionID, report.Reason, models.ReportPending, time.Now()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create report SQL")
		return 0, fmt.Errorf("failed to build create report query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		logger.Error().Err(err).Int64("studentID", report.StudentID).Msg("Error executing create report query")
		return 0, fmt.Errorf("error creating report: %w", err)
	}

	return id, nil
}

// GetReportByID fetches a single report
func (r *ReportRepository) GetReportByID(ctx context.Context, id int64) (*models.ExpiredCodeReport, error) {
	sql, args, err := r.sb.Select(reportColumns...).
		From("expired_code_reports").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get report SQL")
		return nil, fmt.Errorf("failed to build get report query: %w", err)
	}

	var rep models.ExpiredCodeReport
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&rep.ID, &rep.StudentID, &rep.SessionID, &rep.Reason, &rep.Status,
		&rep.ReviewedBy, &rep.CreatedAt, &rep.ReviewedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrReportNotFound
		}
		logger.Error().Err(err).Int64("reportID", id).Msg("Error executing get report query")
		return nil, fmt.Errorf("error getting report: %w", err)
	}

	return &rep, nil
}

// ListPendingForFaculty returns open reports for sessions belonging to the
// faculty member's classes, oldest first.
func (r *ReportRepository) ListPendingForFaculty(ctx context.Context, facultyID int64) ([]models.ExpiredCodeReport, error) {
	sql, args, err := r.sb.Select(
		"r.id", "r.student_id", "r.session_id", "r.reason", "r.status", "r.reviewed_by", "r.created_at", "r.reviewed_at").
		From("expired_code_reports r").
		Join("class_sessions s ON s.id = r.session_id").
		Join("classes c ON c.id = s.class_id").
		Where(squirrel.Eq{"c.faculty_id": facultyID, "r.status": models.ReportPending}).
		OrderBy("r.created_at ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list reports SQL")
		return nil, fmt.Errorf("failed to build list reports query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("facultyID", facultyID).Msg("Error executing list reports query")
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	defer rows.Close()

	var reports []models.ExpiredCodeReport
	for rows.Next() {
		var rep models.ExpiredCodeReport
		if err := rows.Scan(&rep.ID, &rep.StudentID, &rep.SessionID, &rep.Reason, &rep.Status,
			&rep.ReviewedBy, &rep.CreatedAt, &rep.ReviewedAt); err != nil {
			return nil, fmt.Errorf("error scanning report row: %w", err)
		}
		reports = append(reports, rep)
	}

	return reports, rows.Err()
}

// CloseReport transitions a pending report to APPROVED or REJECTED. The
// status predicate makes closing idempotent-unsafe on purpose; a report
// already reviewed stays as reviewed.
func (r *ReportRepository) CloseReport(ctx context.Context, id, reviewerID int64, status models.ReportStatus) error {
	sql, args, err := r.sb.Update("expired_code_reports").
		Set("status", status).
		Set("reviewed_by", reviewerID).
		Set("reviewed_at", time.Now()).
		Where(squirrel.Eq{"id": id, "status": models.ReportPending}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building close report SQL")
		return fmt.Errorf("failed to build close report query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("reportID", id).Msg("Error executing close report query")
		return fmt.Errorf("error closing report: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// distinguish a missing report from one already reviewed
		if _, getErr := r.GetReportByID(ctx, id); getErr != nil {
			return getErr
		}
		return apperrors.ErrReportAlreadyClosed
	}

	return nil
}
