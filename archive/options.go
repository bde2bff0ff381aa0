package archive

import (
	"fmt"

	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/kdf"
	"github.com/hollowpine/vaultarc/internal/obs"
)

// config collects the options passed to Create/Open.
type config struct {
	cipher        cipher.Algorithm
	kdfDigest     kdf.Digest
	kdfIterations uint32
	kdfSaltLen    int
	password      []byte
	logger        obs.Logger
	metrics       *obs.Metrics
	circuit       *obs.CircuitBreaker
}

func defaultConfig() *config {
	return &config{
		cipher:        cipher.None,
		kdfDigest:     kdf.SHA256,
		kdfIterations: 600_000,
		kdfSaltLen:    16,
		logger:        obs.NopLogger{},
	}
}

// Option configures an archive at Create or Open time.
type Option func(*config) error

// WithCipher selects the block cipher algorithm new archives are created
// with. Open ignores this -- the cipher actually in use is read back from
// the header.
func WithCipher(alg cipher.Algorithm) Option {
	return func(c *config) error {
		c.cipher = alg
		return nil
	}
}

// WithPBKDF2 configures the key derivation function used to wrap the data
// key. Only meaningful when the chosen cipher needs a key.
func WithPBKDF2(digest kdf.Digest, iterations uint32, saltLen int) Option {
	return func(c *config) error {
		if iterations == 0 {
			return fmt.Errorf("archive: pbkdf2 iterations must be positive")
		}
		if saltLen <= 0 {
			return fmt.Errorf("archive: pbkdf2 salt length must be positive")
		}
		c.kdfDigest = digest
		c.kdfIterations = iterations
		c.kdfSaltLen = saltLen
		return nil
	}
}

// WithPassword supplies the password used to wrap (Create) or unwrap
// (Open) the header's secret envelope.
func WithPassword(password []byte) Option {
	return func(c *config) error {
		c.password = password
		return nil
	}
}

// WithLogger routes the archive's internal diagnostic logging through l
// instead of discarding it.
func WithLogger(l obs.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return fmt.Errorf("archive: logger must not be nil")
		}
		c.logger = l
		return nil
	}
}

// WithMetrics records block allocation, entry appends, cache hit/miss, and
// encrypt/decrypt byte counts to m, whose counters obs.NewMetrics has
// already registered.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithCircuitBreaker guards the backend's Read/Write/Acquire calls with cb.
func WithCircuitBreaker(cb *obs.CircuitBreaker) Option {
	return func(c *config) error {
		c.circuit = cb
		return nil
	}
}
