package services

import (
	"regexp"
	"testing"
)

var sessionCodePattern = regexp.MustCompile(`^[0-9a-f]{6}$`)

func TestGenerateSessionCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateSessionCode()
		if err != nil {
			t.Fatalf("generateSessionCode: %v", err)
		}
		if !sessionCodePattern.MatchString(code) {
			t.Fatalf("code %q is not 6 lowercase hex characters", code)
		}
	}
}

func TestGenerateSessionCodeUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	var collisions int
	for i := 0; i < 1000; i++ {
		code, err := generateSessionCode()
		if err != nil {
			t.Fatalf("generateSessionCode: %v", err)
		}
		if seen[code] {
			collisions++
		}
		seen[code] = true
	}
	// 1000 draws from a 16.7M space; more than a handful of collisions
	// means the source is not random.
	if collisions > 5 {
		t.Errorf("%d collisions in 1000 codes", collisions)
	}
}
