// Package artifact frames, seals and names encrypted backup artifacts.
//
// Layout of a packed artifact:
//
//	[0:128]   salt
//	[128:160] integrity tag
//	[160:]    ciphertext
package artifact

import (
	"fmt"

	"github.com/atinyakov/vaultkeeper/internal/crypto"
	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
)

// HeaderSize is the fixed salt+tag prefix; shorter input cannot be an artifact.
const HeaderSize = crypto.SaltSize + crypto.TagSize

// Container is an unpacked artifact. Fields returned by Unpack alias the
// input buffer.
type Container struct {
	Salt       []byte
	Tag        []byte
	Ciphertext []byte
}

// Pack concatenates salt, tag and ciphertext.
func Pack(c Container) ([]byte, error) {
	if len(c.Salt) != crypto.SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes", berrors.ErrInvalidSalt, len(c.Salt))
	}
	if len(c.Tag) != crypto.TagSize {
		return nil, fmt.Errorf("tag must be %d bytes, got %d", crypto.TagSize, len(c.Tag))
	}
	out := make([]byte, 0, HeaderSize+len(c.Ciphertext))
	out = append(out, c.Salt...)
	out = append(out, c.Tag...)
	out = append(out, c.Ciphertext...)
	return out, nil
}

// Unpack splits data at the fixed header offsets.
func Unpack(data []byte) (Container, error) {
	if len(data) < HeaderSize {
		return Container{}, fmt.Errorf("%w: artifact is %d bytes, header needs %d", berrors.ErrDecode, len(data), HeaderSize)
	}
	return Container{
		Salt:       data[:crypto.SaltSize],
		Tag:        data[crypto.SaltSize:HeaderSize],
		Ciphertext: data[HeaderSize:],
	}, nil
}
