// Package webauthnx runs the WebAuthn registration and authentication
// ceremonies for one relying-party identity. It performs cryptographic
// validation only; challenge storage and credential persistence belong to the
// caller.
package webauthnx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Engine errors
var (
	ErrVerificationFailed = errors.New("webauthnx: ceremony verification failed")
	ErrCloneDetected      = errors.New("webauthnx: signature counter did not advance")
	ErrBadSessionData     = errors.New("webauthnx: malformed session data")
)

// Config is the fixed relying-party identity for a deployment. Responses bound
// to a different origin or rpId fail validation inside the library.
type Config struct {
	RPID      string
	RPName    string
	RPOrigins []string
}

// Engine wraps a webauthn.WebAuthn instance.
type Engine struct {
	wa *webauthn.WebAuthn
}

// New creates an engine scoped to the relying-party identity.
func New(cfg Config) (*Engine, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthnx: relying party config: %w", err)
	}
	return &Engine{wa: wa}, nil
}

// Principal is the user identity a ceremony runs for, together with the
// credentials already enrolled for it.
type Principal struct {
	Handle      []byte
	Name        string
	DisplayName string
	Credentials []webauthn.Credential
}

// waUser adapts Principal to the library's user interface.
type waUser struct{ p Principal }

func (u waUser) WebAuthnID() []byte                         { return u.p.Handle }
func (u waUser) WebAuthnName() string                       { return u.p.Name }
func (u waUser) WebAuthnDisplayName() string                { return u.p.DisplayName }
func (u waUser) WebAuthnIcon() string                       { return "" }
func (u waUser) WebAuthnCredentials() []webauthn.Credential { return u.p.Credentials }

// GenerateRegistrationOptions produces creation options with a fresh challenge.
// Already-enrolled credential IDs are excluded so the same authenticator cannot
// double-enroll, and the ceremony demands a platform authenticator with user
// verification (the device's own biometric or PIN gate).
func (e *Engine) GenerateRegistrationOptions(p Principal) (*protocol.CredentialCreation, []byte, error) {
	residentKey := false

	exclusions := make([]protocol.CredentialDescriptor, 0, len(p.Credentials))
	for _, cred := range p.Credentials {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
		})
	}

	options, session, err := e.wa.BeginRegistration(
		waUser{p},
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      &residentKey,
			UserVerification:        protocol.VerificationRequired,
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("webauthnx: begin registration: %w", err)
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, nil, fmt.Errorf("webauthnx: marshal session: %w", err)
	}

	return options, sessionData, nil
}

// VerifyRegistration validates the attestation response against the stored
// session data. On success it yields the new credential (id, public key,
// initial counter) for the caller to persist.
func (e *Engine) VerifyRegistration(p Principal, sessionData, responseBody []byte) (*webauthn.Credential, error) {
	session, err := unmarshalSession(sessionData)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(responseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	credential, err := e.wa.CreateCredential(waUser{p}, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return credential, nil
}

// GenerateAuthenticationOptions produces request options with a fresh
// challenge, restricted to the principal's active credentials.
func (e *Engine) GenerateAuthenticationOptions(p Principal) (*protocol.CredentialAssertion, []byte, error) {
	allowed := make([]protocol.CredentialDescriptor, 0, len(p.Credentials))
	for _, cred := range p.Credentials {
		allowed = append(allowed, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
		})
	}

	options, session, err := e.wa.BeginLogin(
		waUser{p},
		webauthn.WithAllowedCredentials(allowed),
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("webauthnx: begin login: %w", err)
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, nil, fmt.Errorf("webauthnx: marshal session: %w", err)
	}

	return options, sessionData, nil
}

// AuthenticationResult carries what the caller must persist after a successful
// assertion.
type AuthenticationResult struct {
	CredentialID []byte
	NewCounter   uint32
}

// VerifyAuthentication validates the signed assertion against the stored
// session data. The returned counter must be persisted by the caller. A
// counter that did not strictly increase fails with ErrCloneDetected even when
// the signature itself is valid.
func (e *Engine) VerifyAuthentication(p Principal, sessionData, responseBody []byte) (*AuthenticationResult, error) {
	session, err := unmarshalSession(sessionData)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(responseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	credential, err := e.wa.ValidateLogin(waUser{p}, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	// The library flags a non-increasing counter instead of failing; a tie or
	// decrease signals a cloned authenticator and is a hard failure here.
	if credential.Authenticator.CloneWarning {
		return nil, ErrCloneDetected
	}

	return &AuthenticationResult{
		CredentialID: credential.ID,
		NewCounter:   credential.Authenticator.SignCount,
	}, nil
}

// SessionChallenge extracts the base64url challenge string from stored session
// data so the redemption protocol can compare it to the client-supplied value.
func SessionChallenge(sessionData []byte) (string, error) {
	session, err := unmarshalSession(sessionData)
	if err != nil {
		return "", err
	}
	return session.Challenge, nil
}

func unmarshalSession(sessionData []byte) (*webauthn.SessionData, error) {
	var session webauthn.SessionData
	if err := json.Unmarshal(sessionData, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSessionData, err)
	}
	return &session, nil
}
