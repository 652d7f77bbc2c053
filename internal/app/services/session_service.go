package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/app/models/dto"
	"github.com/emre/presentia/internal/app/repositories"
	"github.com/emre/presentia/internal/pkg/apperrors"
	"github.com/emre/presentia/internal/pkg/metrics"
)

// sessionCodeBytes yields 6 hex characters, enough entropy for a code that
// lives a few minutes and is redeemed in one room.
const sessionCodeBytes = 3

// SessionService opens attendance windows for faculty.
type SessionService struct {
	sessionRepo *repositories.SessionRepository
	codeTTL     time.Duration
	logger      zerolog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(
	sessionRepo *repositories.SessionRepository,
	codeTTL time.Duration,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		codeTTL:     codeTTL,
		logger:      logger,
	}
}

// StartSession opens a new time-bounded window for the class and returns the
// code to display. Only the faculty member owning the class may open one.
// Starting a new session never closes earlier ones; each window expires on
// its own clock.
func (s *SessionService) StartSession(ctx context.Context, facultyID int64, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	class, err := s.sessionRepo.GetClassByID(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if class.FacultyID != facultyID {
		return nil, apperrors.NewForbiddenError("Only the class owner may start a session")
	}

	code, err := generateSessionCode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate session code")
		return nil, fmt.Errorf("error generating session code: %w", err)
	}

	expiresAt := time.Now().Add(s.codeTTL)
	session, err := s.sessionRepo.CreateSession(ctx, class.ID, code, expiresAt)
	if err != nil {
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	s.logger.Info().
		Int64("sessionID", session.ID).
		Int64("classID", class.ID).
		Time("expiresAt", expiresAt).
		Msg("Attendance session started")

	return &dto.StartSessionResponse{
		SessionID: session.ID,
		Code:      session.Code,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// generateSessionCode returns a short lowercase hex code from a
// cryptographically random source.
func generateSessionCode() (string, error) {
	buf := make([]byte, sessionCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
