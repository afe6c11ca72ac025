package security

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cretpass!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if hash == "s3cretpass!" || strings.Contains(hash, "s3cretpass") {
		t.Fatalf("hash must not contain the plaintext")
	}

	if err := CheckPassword(hash, "s3cretpass!"); err != nil {
		t.Fatalf("check with correct password failed: %v", err)
	}

	if err := CheckPassword(hash, "wrongpass"); err == nil {
		t.Fatalf("check with wrong password must fail")
	}
}

func TestHashPasswordIsSalted(t *testing.T) {
	h1, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	h2, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// bcrypt embeds a random salt, so two hashes of the same input differ
	if h1 == h2 {
		t.Fatalf("expected salted hashes to differ")
	}
}
