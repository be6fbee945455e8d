package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Encrypt XORs plaintext with the AES-256-CTR keystream for key and iv.
// The ciphertext has the same length as the plaintext.
func Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	return xorStream(plaintext, key, iv)
}

// Decrypt is the inverse of Encrypt. It never fails on corrupted input: a
// tampered ciphertext decrypts to garbage, so callers must VerifyTag first.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	return xorStream(ciphertext, key, iv)
}

func xorStream(in, key, iv []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("cipher iv must be %d bytes, got %d", IVSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}
