package dto

import "encoding/json"

// FingerprintEnrollCompleteRequest carries the authenticator's attestation
// response produced from the creation options.
type FingerprintEnrollCompleteRequest struct {
	Response    json.RawMessage `json:"response" binding:"required"`
	DeviceLabel string          `json:"deviceLabel,omitempty"`
}

// FingerprintVerifyCompleteRequest carries the signed assertion for the
// standalone (advisory) verification endpoint.
type FingerprintVerifyCompleteRequest struct {
	Response json.RawMessage `json:"response" binding:"required"`
}

// FingerprintVerifyResponse is the advisory verification outcome.
type FingerprintVerifyResponse struct {
	Verified     bool   `json:"verified"`
	CredentialID string `json:"credentialId,omitempty"`
}

// FaceEnrollRequest carries the descriptor to enroll. Re-enrollment supersedes
// the previous descriptor in place.
type FaceEnrollRequest struct {
	FaceDescriptor []float64 `json:"faceDescriptor,omitempty"`
	FaceImage      string    `json:"faceImage,omitempty"`
}

// FaceVerifyRequest carries a capture for the advisory verify-only endpoint.
type FaceVerifyRequest struct {
	FaceImage      string    `json:"faceImage,omitempty"`
	FaceDescriptor []float64 `json:"faceDescriptor,omitempty"`
}

// FaceVerifyResponse is the advisory verification outcome. Unlike the hard
// redemption gate, this path may return the threshold for calibration.
type FaceVerifyResponse struct {
	Matched   bool    `json:"matched"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Warning   string  `json:"warning,omitempty"`
}

// CredentialSummary lists an enrolled authenticator for revocation UX.
type CredentialSummary struct {
	ID          int64  `json:"id"`
	DeviceLabel string `json:"deviceLabel"`
	CreatedAt   string `json:"createdAt"`
	LastUsedAt  string `json:"lastUsedAt,omitempty"`
}
