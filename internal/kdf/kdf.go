// Package kdf derives the wrapping key used to encrypt the archive
// header's secret envelope from a user password. Like internal/cipher, the
// set of algorithms is closed and dispatched with a single switch.
package kdf

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Algorithm identifies a key derivation function.
type Algorithm uint32

const (
	None Algorithm = iota
	PBKDF2
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case PBKDF2:
		return "pbkdf2"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(a))
	}
}

// Digest identifies the hash function PBKDF2 uses as its PRF.
type Digest uint32

const (
	SHA1 Digest = iota
	SHA256
)

func (d Digest) String() string {
	switch d {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(d))
	}
}

func (d Digest) newHash() (func() hash.Hash, error) {
	switch d {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("kdf: unsupported digest %s", d)
	}
}

// KDF describes one key derivation configuration: None, or PBKDF2 with a
// digest, iteration count, and salt.
type KDF struct {
	Algorithm  Algorithm
	Digest     Digest
	Iterations uint32
	Salt       []byte
}

// NewPBKDF2 returns a PBKDF2 configuration with a freshly generated salt of
// saltLen bytes.
func NewPBKDF2(digest Digest, iterations uint32, saltLen int) (*KDF, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("kdf: generate salt: %w", err)
	}

	return &KDF{
		Algorithm:  PBKDF2,
		Digest:     digest,
		Iterations: iterations,
		Salt:       salt,
	}, nil
}

// DeriveKey computes a keyLen-byte wrapping key from password.
func (k *KDF) DeriveKey(password []byte, keyLen int) ([]byte, error) {
	switch k.Algorithm {
	case None:
		out := make([]byte, keyLen)
		copy(out, password)
		return out, nil

	case PBKDF2:
		newHash, err := k.Digest.newHash()
		if err != nil {
			return nil, err
		}
		return pbkdf2.Key(password, k.Salt, int(k.Iterations), keyLen, newHash), nil

	default:
		return nil, fmt.Errorf("kdf: unsupported algorithm %s", k.Algorithm)
	}
}
