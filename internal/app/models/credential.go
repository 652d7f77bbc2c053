package models

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// BiometricCredential is one enrolled WebAuthn platform authenticator.
// CredentialID is globally unique; SignCount only moves forward. Revocation
// clears IsActive, rows are never hard-deleted while attendance references
// them.
type BiometricCredential struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	CredentialID []byte    `json:"credentialId"`
	PublicKey    []byte    `json:"-"`
	SignCount    uint32    `json:"-"`
	Transports   []string  `json:"transports,omitempty"`
	AAGUID       []byte    `json:"-"`
	DeviceLabel  string    `json:"deviceLabel"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}

// ToWebAuthn converts the stored row into the library's credential shape for
// ceremony validation.
func (c *BiometricCredential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:        c.CredentialID,
		PublicKey: c.PublicKey,
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// WebAuthnCredentials converts a slice of rows for allow/exclude lists.
func WebAuthnCredentials(creds []BiometricCredential) []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(creds))
	for i := range creds {
		out = append(out, creds[i].ToWebAuthn())
	}
	return out
}

// FaceEncoding is the single active face descriptor for a user, encrypted at
// rest. Re-enrollment updates the row in place rather than appending.
type FaceEncoding struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"userId"`
	EncryptedDescriptor string    `json:"-"`
	IsActive            bool      `json:"isActive"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
