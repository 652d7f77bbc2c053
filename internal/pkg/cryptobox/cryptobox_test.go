package cryptobox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := New("unit-test-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plaintext := []byte(`[0.1,-0.25,0.33]`)
	blob, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := box.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	box, _ := New("unit-test-secret")

	plaintext := []byte("same input")
	first, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if first == second {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptRejectsTamperedBlob(t *testing.T) {
	box, _ := New("unit-test-secret")

	blob, err := box.Encrypt([]byte("descriptor"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := box.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("tampered blob: got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptRejectsWrongSecret(t *testing.T) {
	sealer, _ := New("secret-a")
	opener, _ := New("secret-b")

	blob, err := sealer.Encrypt([]byte("descriptor"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := opener.Decrypt(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong secret: got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	box, _ := New("unit-test-secret")

	for name, input := range map[string]string{
		"not base64": "%%%not-base64%%%",
		"too short":  base64.StdEncoding.EncodeToString([]byte("tiny")),
		"empty":      "",
	} {
		if _, err := box.Decrypt(input); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("%s: got %v, want ErrDecryptionFailed", name, err)
		}
	}
}

func TestNewRejectsEmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New with empty secret should fail")
	}
}
