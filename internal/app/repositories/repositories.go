package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository       *UserRepository
	EnrollmentRepository *EnrollmentRepository
	SessionRepository    *SessionRepository
	AttendanceRepository *AttendanceRepository
	CredentialRepository *CredentialRepository
	FaceRepository       *FaceRepository
	ReportRepository     *ReportRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepository:       NewUserRepository(db),
		EnrollmentRepository: NewEnrollmentRepository(db),
		SessionRepository:    NewSessionRepository(db),
		AttendanceRepository: NewAttendanceRepository(db),
		CredentialRepository: NewCredentialRepository(db),
		FaceRepository:       NewFaceRepository(db),
		ReportRepository:     NewReportRepository(db),
	}
}
