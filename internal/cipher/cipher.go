// Package cipher implements the block plane's cipher context: the
// keyed encrypt/decrypt of one block for a closed set of algorithms. The
// set is fixed (None, AES-128-CTR, AES-128-GCM), so dispatch is a single
// type switch over a tag rather than an interface registry.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// Algorithm identifies one of the archive's supported block ciphers.
type Algorithm uint32

const (
	None Algorithm = iota
	AES128CTR
	AES128GCM
)

var ErrInvalidKey = errors.New("cipher: invalid key")
var ErrInvalidIV = errors.New("cipher: invalid iv")
var ErrNotTrustworthy = errors.New("cipher: authentication tag mismatch")

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case AES128CTR:
		return "aes128-ctr"
	case AES128GCM:
		return "aes128-gcm"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(a))
	}
}

// KeySize returns the key length required by a, in bytes.
func (a Algorithm) KeySize() int {
	switch a {
	case None:
		return 0
	case AES128CTR, AES128GCM:
		return 16
	default:
		return 0
	}
}

// IVSize returns the IV/nonce length required by a, in bytes.
func (a Algorithm) IVSize() int {
	switch a {
	case None:
		return 0
	case AES128CTR:
		return aes.BlockSize
	case AES128GCM:
		return 12
	default:
		return 0
	}
}

// TagSize returns the authentication tag length a appends to ciphertext.
// Non-AE algorithms return 0.
func (a Algorithm) TagSize() int {
	switch a {
	case AES128GCM:
		return 16
	default:
		return 0
	}
}

// NetBlockSize returns the usable plaintext capacity of a gross-sized block
// once a's tag overhead is subtracted.
func (a Algorithm) NetBlockSize(gross uint32) uint32 {
	return gross - uint32(a.TagSize())
}

// GenerateKey returns a fresh random key and IV sized for a.
func (a Algorithm) GenerateKey() (key, iv []byte, err error) {
	key = make([]byte, a.KeySize())
	iv = make([]byte, a.IVSize())

	if _, err := rand.Read(key); err != nil {
		return nil, nil, fmt.Errorf("cipher: generate key: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("cipher: generate iv: %w", err)
	}

	return key, iv, nil
}

// Context performs encrypt/decrypt for one fixed algorithm, key, and IV.
// The same key+IV pair is reused for every block the archive encrypts,
// matching the container header's single stored IV (section 6.1) -- the
// AE tag, not nonce uniqueness, is what the archive relies on to detect
// tampering.
type Context struct {
	alg Algorithm
	key []byte
	iv  []byte
}

// NewContext validates key/iv against alg's required sizes and returns a
// ready-to-use Context.
func NewContext(alg Algorithm, key, iv []byte) (*Context, error) {
	if len(key) != alg.KeySize() {
		return nil, ErrInvalidKey
	}
	if len(iv) != alg.IVSize() {
		return nil, ErrInvalidIV
	}

	return &Context{alg: alg, key: key, iv: iv}, nil
}

// Algorithm returns the algorithm this context was constructed with.
func (c *Context) Algorithm() Algorithm {
	return c.alg
}

// Encrypt returns the ciphertext (plus, for AE algorithms, an appended
// authentication tag) for plaintext.
func (c *Context) Encrypt(plaintext []byte) ([]byte, error) {
	switch c.alg {
	case None:
		out := make([]byte, len(plaintext))
		copy(out, plaintext)
		return out, nil

	case AES128CTR:
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, ErrInvalidKey
		}
		stream := cipher.NewCTR(block, c.iv)
		out := make([]byte, len(plaintext))
		stream.XORKeyStream(out, plaintext)
		return out, nil

	case AES128GCM:
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, ErrInvalidKey
		}
		gcm, err := cipher.NewGCMWithNonceSize(block, len(c.iv))
		if err != nil {
			return nil, ErrInvalidIV
		}
		return gcm.Seal(nil, c.iv, plaintext, nil), nil

	default:
		return nil, fmt.Errorf("cipher: unsupported algorithm %s", c.alg)
	}
}

// Decrypt reverses Encrypt. For AE algorithms it returns ErrNotTrustworthy
// if the trailing tag does not verify.
func (c *Context) Decrypt(ciphertext []byte) ([]byte, error) {
	switch c.alg {
	case None:
		out := make([]byte, len(ciphertext))
		copy(out, ciphertext)
		return out, nil

	case AES128CTR:
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, ErrInvalidKey
		}
		stream := cipher.NewCTR(block, c.iv)
		out := make([]byte, len(ciphertext))
		stream.XORKeyStream(out, ciphertext)
		return out, nil

	case AES128GCM:
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, ErrInvalidKey
		}
		gcm, err := cipher.NewGCMWithNonceSize(block, len(c.iv))
		if err != nil {
			return nil, ErrInvalidIV
		}
		out, err := gcm.Open(nil, c.iv, ciphertext, nil)
		if err != nil {
			return nil, ErrNotTrustworthy
		}
		return out, nil

	default:
		return nil, fmt.Errorf("cipher: unsupported algorithm %s", c.alg)
	}
}
