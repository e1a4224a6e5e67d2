package crypto

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	other, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == other {
		t.Fatal("expected tokens to differ")
	}

	if _, err := GenerateToken(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestGenerateJoinCode(t *testing.T) {
	code, err := GenerateJoinCode(8)
	if err != nil {
		t.Fatalf("generate join code: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("expected 8 characters, got %d", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(joinCodeAlphabet, r) {
			t.Fatalf("unexpected character %q in join code", r)
		}
	}
}
