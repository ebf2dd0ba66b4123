package vault

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testCipher(t *testing.T, fill byte) *FieldCipher {
	t.Helper()
	c, err := New(bytes.Repeat([]byte{fill}, KeySize))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := testCipher(t, 1)
	for _, plain := range []string{"", "42", "72.5", "peanuts, shellfish", "орехи"} {
		enc, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", plain, err)
		}
		if enc == plain && plain != "" {
			t.Errorf("ciphertext equals plaintext for %q", plain)
		}
		got, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != plain {
			t.Errorf("expected %q, got %q", plain, got)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c := testCipher(t, 2)
	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	if a == b {
		t.Error("two encryptions of the same value should differ")
	}
}

func TestDecryptAcceptsStrippedPadding(t *testing.T) {
	c := testCipher(t, 3)
	enc, err := c.Encrypt("abc")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !strings.HasSuffix(enc, "=") {
		t.Fatalf("expected padded output for this length, got %q", enc)
	}
	got, err := c.Decrypt(strings.TrimRight(enc, "="))
	if err != nil {
		t.Fatalf("Decrypt of unpadded value failed: %v", err)
	}
	if got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestDecryptRejectsTamperedAndForeign(t *testing.T) {
	c := testCipher(t, 4)
	enc, _ := c.Encrypt("secret")

	raw, _ := base64.URLEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0xff
	if _, err := c.Decrypt(base64.URLEncoding.EncodeToString(raw)); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for tampered value, got %v", err)
	}

	other := testCipher(t, 5)
	if _, err := other.Decrypt(enc); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for wrong key, got %v", err)
	}

	if _, err := c.Decrypt("not base64!"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for garbage, got %v", err)
	}
	if _, err := c.Decrypt("AAAA"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for short value, got %v", err)
	}
}

func TestNewFromBase64(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if _, err := NewFromBase64(key); err != nil {
		t.Fatalf("generated key rejected: %v", err)
	}
	if _, err := NewFromBase64(strings.TrimRight(key, "=")); err != nil {
		t.Fatalf("unpadded key rejected: %v", err)
	}

	for _, bad := range []string{"", "   ", "c2hvcnQ=", "%%%"} {
		if _, err := NewFromBase64(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("NewFromBase64(%q): expected ErrInvalidKey, got %v", bad, err)
		}
	}
}
