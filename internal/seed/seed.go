package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/emre/presentia/internal/pkg/auth"
)

// CreateDefaultData inserts a faculty member, a student, one class and the
// student's enrollment so a fresh development database is usable immediately.
// Accounts are provisioned out of band in production; this only runs in
// development mode. Every insert is idempotent.
func CreateDefaultData(ctx context.Context, dbPool *pgxpool.Pool, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default development data...")

	passwordHash, err := auth.HashPassword("presentia")
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	facultyID, err := upsertUser(ctx, dbPool, seedUser{
		email:     "faculty@presentia.local",
		firstName: "Default",
		lastName:  "Faculty",
		role:      "FACULTY",
	}, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to seed faculty user: %w", err)
	}

	studentID, err := upsertUser(ctx, dbPool, seedUser{
		email:     "student@presentia.local",
		firstName: "Default",
		lastName:  "Student",
		rollNo:    "S-0001",
		role:      "STUDENT",
	}, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to seed student user: %w", err)
	}

	var classID int64
	err = dbPool.QueryRow(ctx, `
		INSERT INTO classes (name, code, faculty_id)
		VALUES ('Introduction to Computer Science', 'CS101', $1)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, facultyID).Scan(&classID)
	if err != nil {
		return fmt.Errorf("failed to seed class: %w", err)
	}

	_, err = dbPool.Exec(ctx, `
		INSERT INTO enrollments (student_id, class_id)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT enrollments_student_class_key DO NOTHING`,
		studentID, classID)
	if err != nil {
		return fmt.Errorf("failed to seed enrollment: %w", err)
	}

	lgr.Info().
		Int64("facultyId", facultyID).
		Int64("studentId", studentID).
		Int64("classId", classID).
		Msg("Default development data ready")
	return nil
}

type seedUser struct {
	email     string
	firstName string
	lastName  string
	rollNo    string
	role      string
}

func upsertUser(ctx context.Context, dbPool *pgxpool.Pool, u seedUser, passwordHash string) (int64, error) {
	var rollNo *string
	if u.rollNo != "" {
		rollNo = &u.rollNo
	}

	var id int64
	err := dbPool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, roll_no, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role
		RETURNING id`,
		u.email, passwordHash, u.firstName, u.lastName, rollNo, u.role).Scan(&id)
	return id, err
}
