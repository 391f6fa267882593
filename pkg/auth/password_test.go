package auth

import (
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret-pass" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !CheckPassword("s3cret-pass", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cret-pass", "not-a-hash") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	valid := []string{"pillbox42", "Str0ng#Password!"}
	invalid := []string{"short1", "nodigitsatall", "1234567890", strings.Repeat("a1", 40)}
	for _, pw := range valid {
		if err := ValidatePassword(pw); err != nil {
			t.Fatalf("expected %q to be valid, got %v", pw, err)
		}
	}
	for _, pw := range invalid {
		if err := ValidatePassword(pw); err == nil {
			t.Fatalf("expected %q to be rejected", pw)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Alice@Example.COM ")
	if err != nil || got != "alice@example.com" {
		t.Fatalf("NormalizeEmail = %q, %v", got, err)
	}
	for _, bad := range []string{"", "alice", "Alice <alice@example.com>", "a@"} {
		if _, err := NormalizeEmail(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
