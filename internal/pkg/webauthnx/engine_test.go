package webauthnx

import (
	"bytes"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := New(Config{
		RPID:      "localhost",
		RPName:    "Presentia Attendance",
		RPOrigins: []string{"http://localhost:8080"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func testPrincipal(creds ...webauthn.Credential) Principal {
	return Principal{
		Handle:      bytes.Repeat([]byte{0xab}, 32),
		Name:        "student@presentia.local",
		DisplayName: "Ada Lovelace",
		Credentials: creds,
	}
}

func TestNewRejectsEmptyIdentity(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("engine built without a relying party identity")
	}
}

func TestRegistrationOptionsDemandUserVerification(t *testing.T) {
	engine := newTestEngine(t)

	options, sessionData, err := engine.GenerateRegistrationOptions(testPrincipal())
	if err != nil {
		t.Fatalf("GenerateRegistrationOptions: %v", err)
	}

	if options.Response.Challenge.String() == "" {
		t.Error("options carry no challenge")
	}
	sel := options.Response.AuthenticatorSelection
	if sel.UserVerification != protocol.VerificationRequired {
		t.Errorf("user verification = %q, want required", sel.UserVerification)
	}
	if sel.AuthenticatorAttachment != protocol.Platform {
		t.Errorf("attachment = %q, want platform", sel.AuthenticatorAttachment)
	}
	if len(sessionData) == 0 {
		t.Error("no session data returned")
	}
}

func TestRegistrationOptionsExcludeEnrolledCredentials(t *testing.T) {
	engine := newTestEngine(t)
	enrolled := webauthn.Credential{ID: []byte("cred-one")}

	options, _, err := engine.GenerateRegistrationOptions(testPrincipal(enrolled))
	if err != nil {
		t.Fatalf("GenerateRegistrationOptions: %v", err)
	}

	if len(options.Response.CredentialExcludeList) != 1 {
		t.Fatalf("%d exclusions, want 1", len(options.Response.CredentialExcludeList))
	}
	if !bytes.Equal(options.Response.CredentialExcludeList[0].CredentialID, enrolled.ID) {
		t.Error("enrolled credential not excluded")
	}
}

func TestAuthenticationOptionsRestrictToEnrolled(t *testing.T) {
	engine := newTestEngine(t)
	enrolled := webauthn.Credential{ID: []byte("cred-one")}

	options, sessionData, err := engine.GenerateAuthenticationOptions(testPrincipal(enrolled))
	if err != nil {
		t.Fatalf("GenerateAuthenticationOptions: %v", err)
	}

	if len(options.Response.AllowedCredentials) != 1 {
		t.Fatalf("%d allowed credentials, want 1", len(options.Response.AllowedCredentials))
	}
	if options.Response.UserVerification != protocol.VerificationRequired {
		t.Errorf("user verification = %q, want required", options.Response.UserVerification)
	}

	challenge, err := SessionChallenge(sessionData)
	if err != nil {
		t.Fatalf("SessionChallenge: %v", err)
	}
	if challenge != options.Response.Challenge.String() {
		t.Errorf("session challenge %q does not match options challenge %q", challenge, options.Response.Challenge.String())
	}
}

func TestFreshChallengePerCeremony(t *testing.T) {
	engine := newTestEngine(t)
	p := testPrincipal(webauthn.Credential{ID: []byte("cred-one")})

	first, _, err := engine.GenerateAuthenticationOptions(p)
	if err != nil {
		t.Fatalf("GenerateAuthenticationOptions: %v", err)
	}
	second, _, err := engine.GenerateAuthenticationOptions(p)
	if err != nil {
		t.Fatalf("GenerateAuthenticationOptions: %v", err)
	}

	if first.Response.Challenge.String() == second.Response.Challenge.String() {
		t.Error("two ceremonies shared a challenge")
	}
}

func TestSessionChallengeRejectsGarbage(t *testing.T) {
	if _, err := SessionChallenge([]byte("not json")); err == nil {
		t.Error("malformed session data accepted")
	}
}
