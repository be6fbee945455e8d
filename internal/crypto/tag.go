package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// ComputeTag returns HMAC-SHA256(tagKey, salt || ciphertext).
func ComputeTag(tagKey, salt, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, tagKey)
	mac.Write(salt)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// VerifyTag recomputes the tag and compares all TagSize bytes in constant time.
func VerifyTag(tag, tagKey, salt, ciphertext []byte) bool {
	if len(tag) != TagSize {
		return false
	}
	return hmac.Equal(tag, ComputeTag(tagKey, salt, ciphertext))
}
