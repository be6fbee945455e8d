// Package crypto holds the primitives behind a backup artifact: passphrase
// key derivation, the AES stream cipher and the integrity tag.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the random salt stored in every artifact header.
	SaltSize = 128
	// KeySize is the AES-256 key length.
	KeySize = 32
	// IVSize is the AES block size used as the stream IV.
	IVSize = 16
	// TagSize is the length of the integrity tag.
	TagSize = sha256.Size

	// Iterations is the fixed PBKDF2 work factor.
	Iterations = 100_000

	derivedSize = 64
	tagInfo     = "vaultkeeper/artifact/tag/v1"
)

// KeyMaterial is everything derived from one (passphrase, salt) pair.
type KeyMaterial struct {
	// Key is the AES-256 cipher key (derived bytes 0..32).
	Key []byte
	// IV is the stream IV (derived bytes 32..48).
	IV []byte
	// TagKey keys the integrity HMAC. It is expanded from the full derived
	// block and never used as a cipher key.
	TagKey []byte
}

// NewSalt returns SaltSize bytes from the system CSPRNG.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Derive runs PBKDF2-HMAC-SHA512 over passphrase and salt and splits the
// 64 derived bytes into key and IV. A salt that is not exactly SaltSize bytes
// long is rejected with ErrInvalidSalt.
func Derive(passphrase string, salt []byte) (*KeyMaterial, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", berrors.ErrInvalidSalt, len(salt), SaltSize)
	}

	out := pbkdf2.Key([]byte(passphrase), salt, Iterations, derivedSize, sha512.New)
	defer Zero(out)

	km := &KeyMaterial{
		Key:    append([]byte(nil), out[:KeySize]...),
		IV:     append([]byte(nil), out[KeySize:KeySize+IVSize]...),
		TagKey: make([]byte, TagSize),
	}
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, out, []byte(tagInfo)), km.TagKey); err != nil {
		return nil, fmt.Errorf("expand tag key: %w", err)
	}
	return km, nil
}

// Wipe zeroes all derived bytes.
func (km *KeyMaterial) Wipe() {
	if km == nil {
		return
	}
	Zero(km.Key)
	Zero(km.IV)
	Zero(km.TagKey)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
