package browser

import (
	"fmt"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/scrypt"
)

// sealName keys the securecookie HMAC so sealed state files cannot be
// swapped with values produced for another purpose.
const sealName = "courtsched-state"

// Sealer encrypts and authenticates the session-state file at rest.
// The file holds live auth cookies, so an unprotected copy is a
// usable credential.
type Sealer struct {
	sc *securecookie.SecureCookie
}

// NewSealer builds a sealer from explicit hash and block keys. The
// hash key signs, the block key encrypts; both are required.
func NewSealer(hashKey, blockKey []byte) (*Sealer, error) {
	if len(hashKey) == 0 || len(blockKey) == 0 {
		return nil, fmt.Errorf("sealer requires both hash and block keys")
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxLength(0)
	sc.MaxAge(0)
	return &Sealer{sc: sc}, nil
}

// SealerFromPassphrase derives the key pair from a passphrase with
// scrypt. The salt is fixed so the same passphrase always opens the
// same file.
func SealerFromPassphrase(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("empty passphrase")
	}
	key, err := scrypt.Key([]byte(passphrase), []byte("courtsched.state.v1"), 32768, 8, 1, 64)
	if err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}
	return NewSealer(key[:32], key[32:])
}

func (s *Sealer) Seal(plain []byte) (string, error) {
	return s.sc.Encode(sealName, plain)
}

func (s *Sealer) Open(encoded string) ([]byte, error) {
	var plain []byte
	if err := s.sc.Decode(sealName, encoded, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
