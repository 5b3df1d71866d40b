package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	plaintext := "api-key-secret-value"

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if ciphertext == plaintext {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptUniqueNonce(t *testing.T) {
	key, _ := GenerateKey()

	a, _ := Encrypt("same input", key)
	b, _ := Encrypt("same input", key)

	// Разные nonce дают разный шифротекст для одинакового входа
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestEncryptInvalidKey(t *testing.T) {
	if _, err := Encrypt("data", []byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	key, _ := GenerateKey()
	ciphertext, _ := Encrypt("sensitive", key)

	// Портим последний символ base64
	tampered := ciphertext[:len(ciphertext)-2] + "=="
	if _, err := Decrypt(tampered, key); err == nil {
		t.Error("expected error for tampered ciphertext")
	}

	wrongKey, _ := GenerateKey()
	if _, err := Decrypt(ciphertext, wrongKey); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("operator-secret")
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	if err := VerifyToken("operator-secret", hash); err != nil {
		t.Errorf("VerifyToken failed for correct token: %v", err)
	}
	if err := VerifyToken("wrong", hash); err != ErrTokenMismatch {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestHashTokenValidation(t *testing.T) {
	if _, err := HashToken(""); err != ErrEmptyToken {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := HashToken(strings.Repeat("x", 73)); err != ErrTokenTooLong {
		t.Errorf("expected ErrTokenTooLong, got %v", err)
	}
}

func TestCheckTokenMatch(t *testing.T) {
	hash, _ := HashToken("tok")
	if !CheckTokenMatch("tok", hash) {
		t.Error("CheckTokenMatch false for correct token")
	}
	if CheckTokenMatch("other", hash) {
		t.Error("CheckTokenMatch true for wrong token")
	}
}
