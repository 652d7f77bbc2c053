// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttendanceMarked counts successful attendance records by how they were
	// created (PRESENT or MANUAL).
	AttendanceMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentia_attendance_marked_total",
		Help: "Attendance records created, labelled by status.",
	}, []string{"status"})

	// VerificationFailures counts redemption attempts rejected by a gate.
	VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentia_verification_failures_total",
		Help: "Attendance redemptions rejected, labelled by the gate that failed.",
	}, []string{"gate"})

	// ChallengesIssued counts WebAuthn ceremonies started by flow.
	ChallengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presentia_webauthn_challenges_issued_total",
		Help: "WebAuthn challenges issued, labelled by ceremony flow.",
	}, []string{"flow"})

	// FaceEngineDegraded is 1 while the face service is unreachable.
	FaceEngineDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presentia_face_engine_degraded",
		Help: "Whether face verification is running in degraded mode.",
	})

	// SessionsStarted counts attendance sessions opened by faculty.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presentia_sessions_started_total",
		Help: "Attendance sessions opened.",
	})
)
