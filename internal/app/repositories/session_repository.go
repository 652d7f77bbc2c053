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

// SessionRepository handles attendance-window database operations
type SessionRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var sessionColumns = []string{"id", "class_id", "code", "created_at", "expires_at", "is_active"}

func scanSession(row pgx.Row) (*models.ClassSession, error) {
	var s models.ClassSession
	err := row.Scan(&s.ID, &s.ClassID, &s.Code, &s.CreatedAt, &s.ExpiresAt, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error scanning session row: %w", err)
	}
	return &s, nil
}

// CreateSession stores a newly issued attendance window and returns it.
func (r *SessionRepository) CreateSession(ctx context.Context, classID int64, code string, expiresAt time.Time) (*models.ClassSession, error) {
	now := time.Now()

	sql, args, err := r.sb.Insert("class_sessions").
		Columns("class_id", "code", "created_at", "expires_at", "is_active").
		Values(classID, code, now, expiresAt, true).
		Suffix("RETURNING " + joinColumns(sessionColumns)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create session SQL")
		return nil, fmt.Errorf("failed to build create session query: %w", err)
	}

	session, err := scanSession(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		logger.Error().Err(err).Int64("classID", classID).Msg("Error executing create session query")
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return session, nil
}

// FindRedeemableByCode returns the most recently created active session for a
// code whose expiry is still strictly in the future. Sessions sharing a code
// historically are disambiguated by creation order.
func (r *SessionRepository) FindRedeemableByCode(ctx context.Context, code string, now time.Time) (*models.ClassSession, error) {
	sql, args, err := r.sb.Select(sessionColumns...).
		From("class_sessions").
		Where(squirrel.Eq{"code": code, "is_active": true}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find redeemable session SQL")
		return nil, fmt.Errorf("failed to build find session query: %w", err)
	}

	return scanSession(r.db.QueryRow(ctx, sql, args...))
}

// FindLatestByCode returns the newest session for a code regardless of expiry.
// The expired-code report flow needs this to attach a report to the window the
// student missed.
func (r *SessionRepository) FindLatestByCode(ctx context.Context, code string) (*models.ClassSession, error) {
	sql, args, err := r.sb.Select(sessionColumns...).
		From("class_sessions").
		Where(squirrel.Eq{"code": code, "is_active": true}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find latest session SQL")
		return nil, fmt.Errorf("failed to build find session query: %w", err)
	}

	return scanSession(r.db.QueryRow(ctx, sql, args...))
}

// GetSessionByID retrieves a session by primary key
func (r *SessionRepository) GetSessionByID(ctx context.Context, id int64) (*models.ClassSession, error) {
	sql, args, err := r.sb.Select(sessionColumns...).
		From("class_sessions").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get session by id SQL")
		return nil, fmt.Errorf("failed to build get session query: %w", err)
	}

	return scanSession(r.db.QueryRow(ctx, sql, args...))
}

// GetClassByID retrieves a class by primary key
func (r *SessionRepository) GetClassByID(ctx context.Context, id int64) (*models.Class, error) {
	sql, args, err := r.sb.Select("id", "name", "code", "faculty_id", "created_at").
		From("classes").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get class by id SQL")
		return nil, fmt.Errorf("failed to build get class query: %w", err)
	}

	var c models.Class
	err = r.db.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.Name, &c.Code, &c.FacultyID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrClassNotFound
		}
		return nil, fmt.Errorf("error scanning class row: %w", err)
	}

	return &c, nil
}

func joinColumns(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}
