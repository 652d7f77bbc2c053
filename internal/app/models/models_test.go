package models

import (
	"testing"
	"time"
)

func TestSessionExpiredBoundaryIsStrict(t *testing.T) {
	now := time.Now()
	session := &ClassSession{ExpiresAt: now}

	if !session.Expired(now) {
		t.Error("a session expiring exactly now must not be redeemable")
	}
	if session.Expired(now.Add(-time.Nanosecond)) {
		t.Error("a session expiring in the future reported expired")
	}
	if !session.Expired(now.Add(time.Second)) {
		t.Error("a past expiry reported live")
	}
}

func TestParseBiometricPolicy(t *testing.T) {
	cases := map[string]BiometricPolicy{
		"both":     PolicyBothRequired,
		"any":      PolicyAnyOneRequired,
		"optional": PolicyOptional,
		"":         PolicyBothRequired,
		"bogus":    PolicyBothRequired,
	}
	for input, want := range cases {
		if got := ParseBiometricPolicy(input); got != want {
			t.Errorf("ParseBiometricPolicy(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestUserFullName(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace"}
	if got := u.FullName(); got != "Ada Lovelace" {
		t.Errorf("FullName = %q", got)
	}
}
