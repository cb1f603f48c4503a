package hasher_test

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/warpmodel/adapters/hasher"
)

func TestBcrypt_Hash(t *testing.T) {
	h := hasher.NewBcrypt()

	hash, err := h.Hash("password123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if len(hash) == 0 || hash[0] != '$' {
		t.Errorf("expected bcrypt format starting with $, got %q", hash)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
}

func TestBcrypt_Hash_InvalidCostFallsBack(t *testing.T) {
	h := hasher.NewBcrypt()

	hash, err := h.Hash("password", 1)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	cost, _ := bcrypt.Cost([]byte(hash))
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want default %d", cost, bcrypt.DefaultCost)
	}
}

func TestBcrypt_Hash_SameInputDifferentOutput(t *testing.T) {
	h := hasher.NewBcrypt()

	hash1, _ := h.Hash("password", bcrypt.MinCost)
	hash2, _ := h.Hash("password", bcrypt.MinCost)

	// Bcrypt uses random salt, so same input gives different hash
	if hash1 == hash2 {
		t.Error("same password should produce different hashes due to salt")
	}
}

func TestBcrypt_Compare(t *testing.T) {
	h := hasher.NewBcrypt()
	hash, _ := h.Hash("mySecretPassword", bcrypt.MinCost)

	if !h.Compare(hash, "mySecretPassword") {
		t.Error("Compare should return true for matching password")
	}
	if h.Compare(hash, "wrongPassword") {
		t.Error("Compare should return false for wrong password")
	}
	if h.Compare("not-a-hash", "password") {
		t.Error("Compare should return false for invalid hash")
	}
	if h.Compare(hash, "") {
		t.Error("Compare should return false for empty password")
	}
}

func TestFake(t *testing.T) {
	h := hasher.Fake{}

	hash, err := h.Hash("plaintext", 8)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash != "hashed:plaintext" {
		t.Errorf("hash = %q", hash)
	}
	if !h.Compare(hash, "plaintext") {
		t.Error("Fake Compare should match its own hash")
	}
	if h.Compare("plaintext", "plaintext") {
		t.Error("Fake Compare should reject unhashed values")
	}
}
