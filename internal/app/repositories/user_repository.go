package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/logger"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name",
	"roll_no", "role", "webauthn_handle", "created_at",
}

func (r *UserRepository) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.RollNo, &user.Role, &user.WebAuthnHandle, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("error scanning user row: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by primary key
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	sql, args, err := r.sb.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get user by id SQL")
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	return r.scanUser(r.db.QueryRow(ctx, sql, args...))
}

// GetUserByEmail retrieves a user by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	sql, args, err := r.sb.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get user by email SQL")
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	return r.scanUser(r.db.QueryRow(ctx, sql, args...))
}

// SetWebAuthnHandle stores the opaque user handle used in WebAuthn ceremonies.
// Called once, lazily, before the first enrollment.
func (r *UserRepository) SetWebAuthnHandle(ctx context.Context, userID int64, handle []byte) error {
	sql, args, err := r.sb.Update("users").
		Set("webauthn_handle", handle).
		Where(squirrel.Eq{"id": userID}).
		Where("webauthn_handle IS NULL").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building set webauthn handle SQL")
		return fmt.Errorf("failed to build set handle query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error setting webauthn handle")
		return fmt.Errorf("error setting webauthn handle: %w", err)
	}

	return nil
}
