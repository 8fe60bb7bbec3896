package vault

import (
	"crypto/rand"
	"reflect"
	"testing"
)

func TestVault_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	rand.Read(key)

	v, err := New(string(key))
	if err != nil {
		t.Fatalf("Failed to create vault: %v", err)
	}

	originalText := []byte("kafe-tenant-password")

	encrypted, err := v.Encrypt(originalText)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	decrypted, err := v.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}

	if !reflect.DeepEqual(originalText, decrypted) {
		t.Errorf("Decrypted text does not match original. Got %s, want %s", decrypted, originalText)
	}
}

func TestVault_EmptyKey(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestVault_TamperedPayload(t *testing.T) {
	v, _ := New("test-key")
	encrypted, err := v.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if _, err := v.Decrypt(encrypted[:len(encrypted)-4]); err == nil {
		t.Error("Expected error for truncated payload")
	}
	if _, err := v.Decrypt([]byte(`{"v":2,"n":"","c":""}`)); err == nil {
		t.Error("Expected error for unknown version")
	}
}
