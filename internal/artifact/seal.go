package artifact

import (
	"fmt"

	"github.com/atinyakov/vaultkeeper/internal/crypto"
	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
)

// Seal encrypts plaintext under a fresh salt and returns the packed artifact.
func Seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	km, err := crypto.Derive(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer km.Wipe()

	ct, err := crypto.Encrypt(plaintext, km.Key, km.IV)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return Pack(Container{
		Salt:       salt,
		Tag:        crypto.ComputeTag(km.TagKey, salt, ct),
		Ciphertext: ct,
	})
}

// Verify checks the integrity tag of a packed artifact without decrypting it.
func Verify(passphrase string, packed []byte) error {
	c, err := Unpack(packed)
	if err != nil {
		return err
	}
	km, err := crypto.Derive(passphrase, c.Salt)
	if err != nil {
		return err
	}
	defer km.Wipe()
	return verify(km, c)
}

// Open verifies and decrypts a packed artifact. No bytes are decrypted
// unless the full tag matches.
func Open(passphrase string, packed []byte) ([]byte, error) {
	c, err := Unpack(packed)
	if err != nil {
		return nil, err
	}
	km, err := crypto.Derive(passphrase, c.Salt)
	if err != nil {
		return nil, err
	}
	defer km.Wipe()

	if err := verify(km, c); err != nil {
		return nil, err
	}
	plain, err := crypto.Decrypt(c.Ciphertext, km.Key, km.IV)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}

func verify(km *crypto.KeyMaterial, c Container) error {
	if !crypto.VerifyTag(c.Tag, km.TagKey, c.Salt, c.Ciphertext) {
		return berrors.ErrTamperDetected
	}
	return nil
}
