package services

// Services defined in this package:
// - AuthService: login and token issuance
// - SessionService: faculty-opened attendance windows
// - BiometricService: WebAuthn credentials and face descriptors
// - AttendanceService: the redemption protocol and its faculty surfaces

// Services holds all the service instances
type Services struct {
	Auth       *AuthService
	Session    *SessionService
	Biometric  *BiometricService
	Attendance *AttendanceService
}
