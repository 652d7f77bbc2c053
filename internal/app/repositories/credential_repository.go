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
	"github.com/emre/presentia/internal/pkg/dberrors"
	"github.com/emre/presentia/internal/pkg/logger"
)

const credentialIDConstraint = "webauthn_credentials_credential_id_key"

// CredentialRepository handles WebAuthn credential persistence
type CredentialRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(db *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var credentialColumns = []string{
	"id", "user_id", "credential_id", "public_key", "sign_count",
	"transports", "aaguid", "device_label", "is_active", "created_at", "last_used_at",
}

func scanCredential(row pgx.Row) (*models.BiometricCredential, error) {
	var c models.BiometricCredential
	err := row.Scan(&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
		&c.Transports, &c.AAGUID, &c.DeviceLabel, &c.IsActive, &c.CreatedAt, &c.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("error scanning credential row: %w", err)
	}
	return &c, nil
}

// FindActiveCredentials returns the user's active credentials ordered by
// enrollment time. Used for exclude-lists on enrollment and allow-lists on
// authentication.
func (r *CredentialRepository) FindActiveCredentials(ctx context.Context, userID int64) ([]models.BiometricCredential, error) {
	sql, args, err := r.sb.Select(credentialColumns...).
		From("webauthn_credentials").
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find credentials SQL")
		return nil, fmt.Errorf("failed to build find credentials query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing find credentials query")
		return nil, fmt.Errorf("error finding credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.BiometricCredential
	for rows.Next() {
		var c models.BiometricCredential
		if err := rows.Scan(&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
			&c.Transports, &c.AAGUID, &c.DeviceLabel, &c.IsActive, &c.CreatedAt, &c.LastUsedAt); err != nil {
			return nil, fmt.Errorf("error scanning credential row: %w", err)
		}
		creds = append(creds, c)
	}

	return creds, rows.Err()
}

// FindActiveByCredentialID looks up one active credential by its opaque
// authenticator-assigned identifier.
func (r *CredentialRepository) FindActiveByCredentialID(ctx context.Context, credentialID []byte) (*models.BiometricCredential, error) {
	sql, args, err := r.sb.Select(credentialColumns...).
		From("webauthn_credentials").
		Where(squirrel.Eq{"credential_id": credentialID, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building find credential by id SQL")
		return nil, fmt.Errorf("failed to build find credential query: %w", err)
	}

	return scanCredential(r.db.QueryRow(ctx, sql, args...))
}

// InsertCredential stores a newly enrolled credential. A duplicate credential
// identifier means the same physical authenticator was enrolled twice and maps
// to ErrCredentialExists.
func (r *CredentialRepository) InsertCredential(ctx context.Context, cred *models.BiometricCredential) (int64, error) {
	sql, args, err := r.sb.Insert("webauthn_credentials").
		Columns("user_id", "credential_id", "public_key", "sign_count", "transports",
			"aaguid", "device_label", "is_active", "created_at").
		Values(cred.UserID, cred.CredentialID, cred.PublicKey, cred.SignCount, cred.Transports,
			cred.AAGUID, cred.DeviceLabel, true, time.Now()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building insert credential SQL")
		return 0, fmt.Errorf("failed to build insert credential query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsDuplicateConstraintError(err, credentialIDConstraint) {
			return 0, apperrors.ErrCredentialExists
		}
		logger.Error().Err(err).Int64("userID", cred.UserID).Msg("Error executing insert credential query")
		return 0, fmt.Errorf("error inserting credential: %w", err)
	}

	return id, nil
}

// UpdateCounter persists the signature counter after a successful
// authentication. The guard keeps the stored value monotonic even if a caller
// misbehaves; callers must never pass a lower value.
func (r *CredentialRepository) UpdateCounter(ctx context.Context, credentialID []byte, newCounter uint32) error {
	sql, args, err := r.sb.Update("webauthn_credentials").
		Set("sign_count", newCounter).
		Set("last_used_at", time.Now()).
		Where(squirrel.Eq{"credential_id": credentialID}).
		Where(squirrel.LtOrEq{"sign_count": newCounter}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update counter SQL")
		return fmt.Errorf("failed to build update counter query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing update counter query")
		return fmt.Errorf("error updating signature counter: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrCredentialNotFound
	}

	return nil
}

// DeactivateCredential soft-deletes a credential owned by the user. Rows are
// never physically removed while attendance history may reference them.
func (r *CredentialRepository) DeactivateCredential(ctx context.Context, id, userID int64) error {
	sql, args, err := r.sb.Update("webauthn_credentials").
		Set("is_active", false).
		Where(squirrel.Eq{"id": id, "user_id": userID, "is_active": true}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building deactivate credential SQL")
		return fmt.Errorf("failed to build deactivate credential query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Error executing deactivate credential query")
		return fmt.Errorf("error deactivating credential: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrCredentialNotFound
	}

	return nil
}
