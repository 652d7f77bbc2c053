package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models"
	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/app/repositories"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/challenge"
	"github.com/emre/presentia/internal/pkg/cryptobox"
	"github.com/emre/presentia/internal/pkg/facever"
	"github.com/emre/presentia/internal/pkg/metrics"
	"github.com/emre/presentia/internal/pkg/webauthnx"
)

// BiometricService owns both biometric factors: WebAuthn platform credentials
// (fingerprint) and encrypted face descriptors. The attendance redemption
// protocol calls into it for its gates; the enrollment and standalone
// verification endpoints use it directly.
type BiometricService struct {
	userRepo       *repositories.UserRepository
	credentialRepo *repositories.CredentialRepository
	faceRepo       *repositories.FaceRepository
	webauthnEngine *webauthnx.Engine
	faceEngine     *facever.Engine
	challenges     challenge.Store
	box            *cryptobox.Box
	logger         zerolog.Logger
}

// NewBiometricService creates a new BiometricService
func NewBiometricService(
	userRepo *repositories.UserRepository,
	credentialRepo *repositories.CredentialRepository,
	faceRepo *repositories.FaceRepository,
	webauthnEngine *webauthnx.Engine,
	faceEngine *facever.Engine,
	challenges challenge.Store,
	box *cryptobox.Box,
	logger zerolog.Logger,
) *BiometricService {
	return &BiometricService{
		userRepo:       userRepo,
		credentialRepo: credentialRepo,
		faceRepo:       faceRepo,
		webauthnEngine: webauthnEngine,
		faceEngine:     faceEngine,
		challenges:     challenges,
		box:            box,
		logger:         logger,
	}
}

// principal assembles the WebAuthn view of a user, lazily minting the opaque
// user handle on first use. The handle never changes once set.
func (s *BiometricService) principal(ctx context.Context, user *models.User) (webauthnx.Principal, error) {
	if len(user.WebAuthnHandle) == 0 {
		handle := make([]byte, 32)
		if _, err := rand.Read(handle); err != nil {
			return webauthnx.Principal{}, fmt.Errorf("error generating user handle: %w", err)
		}
		if err := s.userRepo.SetWebAuthnHandle(ctx, user.ID, handle); err != nil {
			return webauthnx.Principal{}, err
		}
		user.WebAuthnHandle = handle
	}

	creds, err := s.credentialRepo.FindActiveCredentials(ctx, user.ID)
	if err != nil {
		return webauthnx.Principal{}, err
	}

	return webauthnx.Principal{
		Handle:      user.WebAuthnHandle,
		Name:        user.Email,
		DisplayName: user.FullName(),
		Credentials: models.WebAuthnCredentials(creds),
	}, nil
}

// FingerprintEnrollStart issues creation options for enrolling a new platform
// authenticator. Any previous unconsumed registration challenge is replaced.
func (s *BiometricService) FingerprintEnrollStart(ctx context.Context, userID int64) (*protocol.CredentialCreation, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.principal(ctx, user)
	if err != nil {
		return nil, err
	}

	options, sessionData, err := s.webauthnEngine.GenerateRegistrationOptions(p)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", userID).Msg("Failed to generate registration options")
		return nil, apperrors.ErrWebAuthnFailed
	}

	if err := s.challenges.Issue(ctx, userID, challenge.FlowRegistration, sessionData); err != nil {
		return nil, fmt.Errorf("error storing registration challenge: %w", err)
	}

	metrics.ChallengesIssued.WithLabelValues(string(challenge.FlowRegistration)).Inc()
	return options, nil
}

// FingerprintEnrollComplete verifies the attestation response against the
// stored challenge and persists the credential. The challenge is consumed
// before verification, so a failed attempt requires a fresh start call.
func (s *BiometricService) FingerprintEnrollComplete(ctx context.Context, userID int64, req *dto.FingerprintEnrollCompleteRequest) (*dto.CredentialSummary, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessionData, err := s.consumeChallenge(ctx, userID, challenge.FlowRegistration)
	if err != nil {
		return nil, err
	}

	p, err := s.principal(ctx, user)
	if err != nil {
		return nil, err
	}

	cred, err := s.webauthnEngine.VerifyRegistration(p, sessionData, req.Response)
	if err != nil {
		s.logger.Warn().Err(err).Int64("userID", userID).Msg("Registration verification failed")
		return nil, apperrors.NewCustomError(apperrors.ErrWebAuthnFailed, "Attestation verification failed")
	}

	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	record := &models.BiometricCredential{
		UserID:       userID,
		CredentialID: cred.ID,
		PublicKey:    cred.PublicKey,
		SignCount:    cred.Authenticator.SignCount,
		Transports:   transports,
		AAGUID:       cred.Authenticator.AAGUID,
		DeviceLabel:  req.DeviceLabel,
	}

	id, err := s.credentialRepo.InsertCredential(ctx, record)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("userID", userID).
		Int64("credentialID", id).
		Str("deviceLabel", req.DeviceLabel).
		Msg("Biometric credential enrolled")

	return &dto.CredentialSummary{
		ID:          id,
		DeviceLabel: req.DeviceLabel,
	}, nil
}

// FingerprintVerifyStart issues request options for an authentication
// ceremony. Fails when the user has no active credential to assert with.
func (s *BiometricService) FingerprintVerifyStart(ctx context.Context, userID int64) (*protocol.CredentialAssertion, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.principal(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(p.Credentials) == 0 {
		return nil, apperrors.ErrFingerprintNotEnrolled
	}

	options, sessionData, err := s.webauthnEngine.GenerateAuthenticationOptions(p)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", userID).Msg("Failed to generate authentication options")
		return nil, apperrors.ErrWebAuthnFailed
	}

	if err := s.challenges.Issue(ctx, userID, challenge.FlowAuthentication, sessionData); err != nil {
		return nil, fmt.Errorf("error storing authentication challenge: %w", err)
	}

	metrics.ChallengesIssued.WithLabelValues(string(challenge.FlowAuthentication)).Inc()
	return options, nil
}

// FingerprintVerify validates a signed assertion against the stored challenge
// and advances the signature counter. submittedChallenge, when non-empty, must
// equal the challenge the options were issued with; the redemption protocol
// uses this to bind the assertion to the session it was requested for.
func (s *BiometricService) FingerprintVerify(ctx context.Context, user *models.User, response []byte, submittedChallenge string) ([]byte, error) {
	sessionData, err := s.consumeChallenge(ctx, user.ID, challenge.FlowAuthentication)
	if err != nil {
		return nil, err
	}

	if submittedChallenge != "" {
		issued, err := webauthnx.SessionChallenge(sessionData)
		if err != nil {
			return nil, fmt.Errorf("error reading stored challenge: %w", err)
		}
		if issued != submittedChallenge {
			s.logger.Warn().Int64("userID", user.ID).Msg("Submitted challenge does not match issued challenge")
			return nil, apperrors.ErrChallengeMismatch
		}
	}

	p, err := s.principal(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(p.Credentials) == 0 {
		return nil, apperrors.ErrFingerprintNotEnrolled
	}

	result, err := s.webauthnEngine.VerifyAuthentication(p, sessionData, response)
	if err != nil {
		if errors.Is(err, apperrors.ErrCloneDetected) {
			s.logger.Error().Int64("userID", user.ID).Msg("Signature counter did not advance, possible cloned authenticator")
			return nil, err
		}
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Assertion verification failed")
		return nil, apperrors.NewCustomError(apperrors.ErrWebAuthnFailed, "Assertion verification failed")
	}

	if err := s.credentialRepo.UpdateCounter(ctx, result.CredentialID, result.NewCounter); err != nil {
		return nil, err
	}

	return result.CredentialID, nil
}

// FingerprintVerifyStandalone is the advisory verification endpoint outcome.
func (s *BiometricService) FingerprintVerifyStandalone(ctx context.Context, userID int64, req *dto.FingerprintVerifyCompleteRequest) (*dto.FingerprintVerifyResponse, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	credentialID, err := s.FingerprintVerify(ctx, user, req.Response, "")
	if err != nil {
		return nil, err
	}

	return &dto.FingerprintVerifyResponse{
		Verified:     true,
		CredentialID: base64.RawURLEncoding.EncodeToString(credentialID),
	}, nil
}

// ListCredentials returns the user's active authenticators for revocation UX.
func (s *BiometricService) ListCredentials(ctx context.Context, userID int64) ([]dto.CredentialSummary, error) {
	creds, err := s.credentialRepo.FindActiveCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.CredentialSummary, 0, len(creds))
	for _, c := range creds {
		summary := dto.CredentialSummary{
			ID:          c.ID,
			DeviceLabel: c.DeviceLabel,
			CreatedAt:   c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if c.LastUsedAt != nil {
			summary.LastUsedAt = c.LastUsedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, summary)
	}

	return out, nil
}

// RevokeCredential soft-deletes one of the user's authenticators.
func (s *BiometricService) RevokeCredential(ctx context.Context, userID, credentialID int64) error {
	if err := s.credentialRepo.DeactivateCredential(ctx, credentialID, userID); err != nil {
		return err
	}
	s.logger.Info().Int64("userID", userID).Int64("credentialID", credentialID).Msg("Biometric credential revoked")
	return nil
}

// EnrollFace encrypts and stores a face descriptor. A raw image is accepted
// and run through the extraction service; re-enrollment supersedes the
// previous descriptor in place.
func (s *BiometricService) EnrollFace(ctx context.Context, userID int64, req *dto.FaceEnrollRequest) error {
	descriptor, err := s.resolveDescriptor(ctx, req.FaceDescriptor, req.FaceImage)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(descriptor)
	if err != nil {
		return fmt.Errorf("error encoding descriptor: %w", err)
	}

	encrypted, err := s.box.Encrypt(plaintext)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", userID).Msg("Failed to encrypt face descriptor")
		return fmt.Errorf("error encrypting descriptor: %w", err)
	}

	if _, err := s.faceRepo.UpsertFaceEncoding(ctx, userID, encrypted); err != nil {
		return err
	}

	s.logger.Info().Int64("userID", userID).Int("dimensions", len(descriptor)).Msg("Face descriptor enrolled")
	return nil
}

// VerifyFace scores a capture against the enrolled descriptor. Advisory only;
// the response includes the active threshold for calibration.
func (s *BiometricService) VerifyFace(ctx context.Context, userID int64, req *dto.FaceVerifyRequest) (*dto.FaceVerifyResponse, error) {
	result, err := s.FaceGate(ctx, userID, req.FaceImage, req.FaceDescriptor)
	if err != nil {
		return nil, err
	}

	return &dto.FaceVerifyResponse{
		Matched:   result.Matched,
		Score:     result.Score,
		Threshold: s.faceEngine.Threshold().Get(),
		Warning:   result.Warning,
	}, nil
}

// FaceGate runs the full face check for a user: load the enrolled descriptor,
// decrypt it, resolve the capture and score the pair. The redemption protocol
// calls this as its mandatory gate.
func (s *BiometricService) FaceGate(ctx context.Context, userID int64, image string, descriptor []float64) (facever.Result, error) {
	enrolled, err := s.loadEnrolledDescriptor(ctx, userID)
	if err != nil {
		return facever.Result{}, err
	}

	if image != "" && len(descriptor) == 0 {
		result, err := s.faceEngine.VerifyImage(ctx, image, enrolled)
		if err != nil {
			return facever.Result{}, translateFaceError(err)
		}
		return result, nil
	}

	if len(descriptor) == 0 {
		return facever.Result{}, apperrors.NewBadRequestError("A face image or descriptor is required")
	}

	result, err := s.faceEngine.Verify(descriptor, enrolled)
	if err != nil {
		return facever.Result{}, translateFaceError(err)
	}
	return result, nil
}

// RevokeFace disables the user's enrolled descriptor.
func (s *BiometricService) RevokeFace(ctx context.Context, userID int64) error {
	if err := s.faceRepo.DeactivateFaceEncoding(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Int64("userID", userID).Msg("Face enrollment revoked")
	return nil
}

// loadEnrolledDescriptor fetches and decrypts the user's active descriptor.
func (s *BiometricService) loadEnrolledDescriptor(ctx context.Context, userID int64) ([]float64, error) {
	enc, err := s.faceRepo.FindActiveFaceEncoding(ctx, userID)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.box.Decrypt(enc.EncryptedDescriptor)
	if err != nil {
		if errors.Is(err, cryptobox.ErrDecryptionFailed) {
			s.logger.Error().Int64("userID", userID).Msg("Stored face descriptor failed authentication")
			return nil, apperrors.ErrDecryptionFailed
		}
		return nil, fmt.Errorf("error decrypting descriptor: %w", err)
	}

	var descriptor []float64
	if err := json.Unmarshal(plaintext, &descriptor); err != nil {
		return nil, fmt.Errorf("error decoding descriptor: %w", err)
	}

	return descriptor, nil
}

// resolveDescriptor prefers a client-supplied descriptor and otherwise
// extracts one from the image.
func (s *BiometricService) resolveDescriptor(ctx context.Context, descriptor []float64, image string) ([]float64, error) {
	if len(descriptor) > 0 {
		return descriptor, nil
	}
	if image == "" {
		return nil, apperrors.NewBadRequestError("A face image or descriptor is required")
	}

	extracted, err := s.faceEngine.ExtractDescriptor(ctx, image)
	if err != nil {
		return nil, translateFaceError(err)
	}
	return extracted, nil
}

// consumeChallenge redeems the single-use ceremony state.
func (s *BiometricService) consumeChallenge(ctx context.Context, userID int64, flow challenge.Flow) ([]byte, error) {
	sessionData, err := s.challenges.Consume(ctx, userID, flow)
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) {
			return nil, apperrors.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("error consuming challenge: %w", err)
	}
	return sessionData, nil
}

// translateFaceError maps the engine's sentinels onto the API error taxonomy.
func translateFaceError(err error) error {
	switch {
	case errors.Is(err, facever.ErrNoFaceDetected):
		return apperrors.ErrNoFaceDetected
	case errors.Is(err, facever.ErrMultipleFaces):
		return apperrors.ErrMultipleFaces
	case errors.Is(err, facever.ErrUnavailable):
		return apperrors.ErrFaceEngineDegraded
	case errors.Is(err, facever.ErrDimensions):
		return apperrors.NewBadRequestError("Descriptor dimensions do not match the enrolled descriptor")
	default:
		return err
	}
}
