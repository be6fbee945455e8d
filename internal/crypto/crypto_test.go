package crypto

import (
	"bytes"
	"testing"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSalt(t *testing.T) []byte {
	t.Helper()
	salt, err := NewSalt()
	require.NoError(t, err)
	return salt
}

func TestDerive_Deterministic(t *testing.T) {
	salt := testSalt(t)

	a, err := Derive("correct horse", salt)
	require.NoError(t, err)
	b, err := Derive("correct horse", salt)
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, a.IV, b.IV)
	assert.Equal(t, a.TagKey, b.TagKey)
	assert.Len(t, a.Key, KeySize)
	assert.Len(t, a.IV, IVSize)
	assert.Len(t, a.TagKey, TagSize)
}

func TestDerive_DifferentInputs(t *testing.T) {
	salt := testSalt(t)
	base, err := Derive("pass", salt)
	require.NoError(t, err)

	otherPass, err := Derive("pass2", salt)
	require.NoError(t, err)
	assert.NotEqual(t, base.Key, otherPass.Key)

	otherSalt, err := Derive("pass", testSalt(t))
	require.NoError(t, err)
	assert.NotEqual(t, base.Key, otherSalt.Key)
	assert.NotEqual(t, base.IV, otherSalt.IV)
}

func TestDerive_InvalidSalt(t *testing.T) {
	for _, n := range []int{0, 16, SaltSize - 1, SaltSize + 1} {
		_, err := Derive("pass", make([]byte, n))
		assert.ErrorIs(t, err, berrors.ErrInvalidSalt, "salt length %d", n)
	}
}

func TestNewSalt_Unique(t *testing.T) {
	a := testSalt(t)
	b := testSalt(t)
	assert.Len(t, a, SaltSize)
	assert.False(t, bytes.Equal(a, b))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	km, err := Derive("pass", testSalt(t))
	require.NoError(t, err)

	for _, size := range []int{0, 1, 15, 16, 17, 4096} {
		plain := bytes.Repeat([]byte{0xA5}, size)
		ct, err := Encrypt(plain, km.Key, km.IV)
		require.NoError(t, err)
		assert.Len(t, ct, size)
		if size >= 16 {
			assert.NotEqual(t, plain, ct)
		}

		got, err := Decrypt(ct, km.Key, km.IV)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plain, got))
	}
}

func TestEncrypt_BadKeyMaterial(t *testing.T) {
	_, err := Encrypt([]byte("x"), make([]byte, 16), make([]byte, IVSize))
	assert.Error(t, err)
	_, err = Decrypt([]byte("x"), make([]byte, KeySize), make([]byte, 8))
	assert.Error(t, err)
}

func TestVerifyTag(t *testing.T) {
	salt := testSalt(t)
	km, err := Derive("pass", salt)
	require.NoError(t, err)
	ct, err := Encrypt([]byte(`{"key":"xyz"}`), km.Key, km.IV)
	require.NoError(t, err)

	tag := ComputeTag(km.TagKey, salt, ct)
	require.Len(t, tag, TagSize)
	assert.True(t, VerifyTag(tag, km.TagKey, salt, ct))

	t.Run("every ciphertext bit", func(t *testing.T) {
		for i := 0; i < len(ct)*8; i++ {
			flipped := append([]byte(nil), ct...)
			flipped[i/8] ^= 1 << (i % 8)
			assert.False(t, VerifyTag(tag, km.TagKey, salt, flipped), "bit %d", i)
		}
	})

	t.Run("salt bit under same key", func(t *testing.T) {
		flipped := append([]byte(nil), salt...)
		flipped[0] ^= 0x80
		assert.False(t, VerifyTag(tag, km.TagKey, flipped, ct))
	})

	t.Run("truncated tag", func(t *testing.T) {
		assert.False(t, VerifyTag(tag[:TagSize-1], km.TagKey, salt, ct))
	})
}

func TestWipe(t *testing.T) {
	km, err := Derive("pass", testSalt(t))
	require.NoError(t, err)
	km.Wipe()
	assert.Equal(t, make([]byte, KeySize), km.Key)
	assert.Equal(t, make([]byte, IVSize), km.IV)

	var nilKM *KeyMaterial
	assert.NotPanics(t, nilKM.Wipe)
}
