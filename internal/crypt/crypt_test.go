package crypt

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, KeySize)
}

func TestRoundTripAndNonceUniqueness(t *testing.T) {
	s, err := New(testKey())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	a, err := s.EncryptString("RECOVERYCODE1234")
	if err != nil {
		t.Fatalf("EncryptString() error: %v", err)
	}
	b, _ := s.EncryptString("RECOVERYCODE1234")
	if bytes.Equal(a, b) {
		t.Fatal("ciphertexts of the same plaintext must differ")
	}
	got, err := s.DecryptString(a)
	if err != nil || got != "RECOVERYCODE1234" {
		t.Fatalf("DecryptString() = %q, %v", got, err)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	s, _ := New(testKey())
	ct, _ := s.Encrypt([]byte("secret"))
	ct[len(ct)-1] ^= 0xff
	if _, err := s.Decrypt(ct); !errors.Is(err, ErrCiphertext) {
		t.Fatalf("expected ErrCiphertext, got %v", err)
	}
	if _, err := s.Decrypt([]byte{1, 2}); !errors.Is(err, ErrCiphertext) {
		t.Fatalf("expected ErrCiphertext for short input, got %v", err)
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New([]byte("short")); !errors.Is(err, ErrKeySize) {
		t.Fatalf("expected ErrKeySize, got %v", err)
	}
}
