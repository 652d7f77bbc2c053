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

// FaceRepository handles encrypted face descriptor persistence
type FaceRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewFaceRepository creates a new FaceRepository
func NewFaceRepository(db *pgxpool.Pool) *FaceRepository {
	return &FaceRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindActiveFaceEncoding returns the user's current enrolled descriptor.
// Each user holds at most one active encoding.
func (r *FaceRepository) FindActiveFaceEncoding(ctx context.Context, userID int64) (*models.FaceEncoding, error) {
	sql, args, err := r.sb.Select("id", "user_id", "encrypted_descriptor", "is_active", "created_at", "updated_at").
		From("face_encodings").
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find face encoding SQL")
		return nil, fmt.Errorf("failed to build find face encoding query: %w", err)
	}

	var enc models.FaceEncoding
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&enc.ID, &enc.UserID, &enc.EncryptedDescriptor, &enc.IsActive, &enc.CreatedAt, &enc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrFaceNotEnrolled
		}
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing find face encoding query")
		return nil, fmt.Errorf("error finding face encoding: %w", err)
	}

	return &enc, nil
}

// UpsertFaceEncoding stores a new encrypted descriptor, replacing any active
// one in place so re-enrollment never leaves two live encodings behind.
func (r *FaceRepository) UpsertFaceEncoding(ctx context.Context, userID int64, encryptedDescriptor string) (int64, error) {
	now := time.Now()
	sql, args, err := r.sb.Insert("face_encodings").
		Columns("user_id", "encrypted_descriptor", "is_active", "created_at", "updated_at").
		Values(userID, encryptedDescriptor, true, now, now).
		Suffix("ON CONFLICT ON CONSTRAINT face_encodings_user_id_key DO UPDATE SET "+
			"encrypted_descriptor = EXCLUDED.encrypted_descriptor, is_active = TRUE, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building upsert face encoding SQL")
		return 0, fmt.Errorf("failed to build upsert face encoding query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing upsert face encoding query")
		return 0, fmt.Errorf("error upserting face encoding: %w", err)
	}

	return id, nil
}

// DeactivateFaceEncoding disables the user's enrolled descriptor without
// removing the row.
func (r *FaceRepository) DeactivateFaceEncoding(ctx context.Context, userID int64) error {
	sql, args, err := r.sb.Update("face_encodings").
		Set("is_active", false).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building deactivate face encoding SQL")
		return fmt.Errorf("failed to build deactivate face encoding query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing deactivate face encoding query")
		return fmt.Errorf("error deactivating face encoding: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrFaceNotEnrolled
	}

	return nil
}
