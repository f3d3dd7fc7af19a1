package crypto

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN = 1 << 15 // adjust for performance/security
	scryptR = 8
	scryptP = 1
	seedLen = 8
)

// The salt is fixed: embedding and extraction must derive the same seed
// from the passphrase alone, with nothing stored in the image.
var seedSalt = []byte("pngsteg/schedule-seed/v1")

// ErrEmptyPassphrase is returned by DeriveSeed for an empty passphrase.
var ErrEmptyPassphrase = errors.New("empty passphrase")

// DeriveSeed stretches passphrase with scrypt into a 64-bit schedule seed.
// The same passphrase always yields the same seed.
func DeriveSeed(passphrase string) (uint64, error) {
	if passphrase == "" {
		return 0, ErrEmptyPassphrase
	}
	key, err := scrypt.Key([]byte(passphrase), seedSalt, scryptN, scryptR, scryptP, seedLen)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(key), nil
}
