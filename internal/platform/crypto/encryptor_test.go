package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestNewEncryptor_RejectsShortKey(t *testing.T) {
	if _, err := NewEncryptor([]byte("too short")); err == nil {
		t.Error("expected error for short master key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, plaintext := range []string{
		"anxiety",
		"patient reports intermittent chest pain since March",
		"açúcar no sangue elevado — acompanhar",
		strings.Repeat("x", 8192),
	} {
		fc, err := enc.Encrypt(plaintext, "prof-1")
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if fc.CipherText == plaintext {
			t.Error("ciphertext equals plaintext")
		}
		if fc.IV == "" {
			t.Error("expected non-empty iv")
		}

		got, err := enc.Decrypt(fc, "prof-1")
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: got %q", got)
		}
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	enc, _ := NewEncryptor(testKey(t))
	a, _ := enc.Encrypt("note", "prof-1")
	b, _ := enc.Encrypt("note", "prof-1")
	if a.IV == b.IV {
		t.Error("expected distinct ivs for repeated encryption")
	}
	if a.CipherText == b.CipherText {
		t.Error("expected distinct ciphertexts for repeated encryption")
	}
}

func TestDecrypt_WrongKeyContextFails(t *testing.T) {
	enc, _ := NewEncryptor(testKey(t))
	fc, err := enc.Encrypt("diagnosis", "author-a")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := enc.Decrypt(fc, "author-b"); err == nil {
		t.Error("expected decryption under a different key context to fail")
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	enc, _ := NewEncryptor(testKey(t))
	fc, _ := enc.Encrypt("treatment plan", "prof-1")
	tampered := []byte(fc.CipherText)
	tampered[0] ^= 'x'
	fc.CipherText = string(tampered)
	if _, err := enc.Decrypt(fc, "prof-1"); err == nil {
		t.Error("expected tampered ciphertext to fail authentication")
	}
}

func TestDecrypt_BadIV(t *testing.T) {
	enc, _ := NewEncryptor(testKey(t))
	fc, _ := enc.Encrypt("note", "prof-1")
	fc.IV = "AAAA"
	if _, err := enc.Decrypt(fc, "prof-1"); err == nil {
		t.Error("expected error for wrong-length iv")
	}
}

func TestKeyDerivation_IsDeterministicPerContext(t *testing.T) {
	key := testKey(t)
	enc1, _ := NewEncryptor(key)
	enc2, _ := NewEncryptor(key)

	fc, err := enc1.Encrypt("shared master, same context", "prof-9")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := enc2.Decrypt(fc, "prof-9")
	if err != nil {
		t.Fatalf("decrypt with second encryptor: %v", err)
	}
	if got != "shared master, same context" {
		t.Errorf("unexpected plaintext %q", got)
	}
}

func TestNewEncryptor_CopiesKey(t *testing.T) {
	key := testKey(t)
	orig := make([]byte, 32)
	copy(orig, key)

	enc, _ := NewEncryptor(key)
	key[0] ^= 0xff // caller mutates its buffer

	fc, _ := enc.Encrypt("note", "ctx")
	verify, _ := NewEncryptor(orig)
	if _, err := verify.Decrypt(fc, "ctx"); err != nil {
		t.Error("encryptor should not share the caller's key buffer")
	}
	if bytes.Equal(key, orig) {
		t.Fatal("test setup broken: key was not mutated")
	}
}

// -- Service --

func TestService_DisabledModePassThrough(t *testing.T) {
	svc, err := NewService("", zerolog.New(os.Stderr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.IsEnabled() {
		t.Error("expected disabled service")
	}
	fc, _ := svc.Encrypt("plain", "ctx")
	if fc.CipherText != "plain" || fc.IV != "" {
		t.Errorf("expected pass-through, got %+v", fc)
	}
	got, _ := svc.Decrypt(fc, "ctx")
	if got != "plain" {
		t.Errorf("expected pass-through decrypt, got %q", got)
	}
}

func TestService_RejectsBadKeys(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	if _, err := NewService("not-hex", logger); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewService("abcd", logger); err == nil {
		t.Error("expected error for short key")
	}
}

func TestService_EnabledRoundTrip(t *testing.T) {
	key := hex.EncodeToString(testKey(t))
	svc, err := NewService(key, zerolog.New(os.Stderr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.IsEnabled() {
		t.Fatal("expected enabled service")
	}
	fc, err := svc.Encrypt("clinical note", "prof-1")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := svc.Decrypt(fc, "prof-1")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "clinical note" {
		t.Errorf("round trip mismatch: %q", got)
	}
}
