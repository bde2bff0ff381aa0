// Package header implements the archive's top block: the one block whose
// layout is fixed by convention rather than discovered by reading the tree
// it describes. The public part holds the magic, revision, cipher, KDF and
// the secret envelope's IV; the data key/IV pair, user data, the tree and
// the created/modified/file-count fields are all kept inside the
// password-wrapped secret envelope, not in the public part.
package header

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/blockio"
	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/kdf"
	"github.com/hollowpine/vaultarc/internal/tree"
)

var magic = [8]byte{'v', 'l', 't', 'a', 'r', 'c', '0', '1'}

const revision = uint32(0)

// ErrInvalidMagic is returned by Decode when buf does not begin with the
// archive magic, i.e. the backend is not holding an archive this package
// understands.
var ErrInvalidMagic = errors.New("header: invalid magic")

// ErrWrongPassword is returned by Decode when the secret envelope fails to
// decrypt or its internal magic words mismatch, meaning the supplied
// password (or lack of one) does not match the one the archive was
// created with.
var ErrWrongPassword = errors.New("header: wrong password")

// UnsupportedRevisionError is returned by Decode when the header block's
// revision tag is newer than this implementation understands.
type UnsupportedRevisionError struct {
	Revision uint32
}

func (e *UnsupportedRevisionError) Error() string {
	return fmt.Sprintf("header: unsupported revision %d", e.Revision)
}

// Header is the decoded archive header: the cipher and KDF the archive was
// created with, the data-block key material, and the tree and file count
// reachable only once the secret envelope is unwrapped.
type Header struct {
	Cipher   cipher.Algorithm
	KDF      *kdf.KDF
	DataKey  []byte
	DataIV   []byte
	UserData []byte
	Tree     *tree.Tree
	Created  int64
	Modified int64
	NFiles   uint64
}

// New creates a fresh header for alg/kd, generating new random data
// key/IV material. The caller is responsible for building the Store and
// Tree that use this key material once New returns.
func New(alg cipher.Algorithm, kd *kdf.KDF) (*Header, error) {
	key, iv, err := alg.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("header: generate data key: %w", err)
	}

	return &Header{
		Cipher:  alg,
		KDF:     kd,
		DataKey: key,
		DataIV:  iv,
	}, nil
}

// dataStore returns the Store a decoded tree reads and writes its
// indirection nodes through: alg keyed with the data key and IV recovered
// from the secret envelope, the same key material the archive's own Store
// uses for every other block.
func dataStore(be backend.Backend, alg cipher.Algorithm, key, iv []byte) (*blockio.Store, error) {
	ctx, err := cipher.NewContext(alg, key, iv)
	if err != nil {
		return nil, err
	}
	return blockio.New(be, ctx), nil
}

// magicWord is a 32-bit canary duplicated in the secret envelope; if
// decryption used the wrong key the two copies won't match after
// decryption scrambles them, giving an explicit wrong-password signal
// distinct from an authentication-tag failure (None/CTR have no tag).
func magicWord() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// Encode serialises h, including its current Tree, into the bytes that
// belong at the backend's TopID. The result is not padded and not checked
// against the block size; that is left to the caller. password is required
// whenever h.Cipher needs a key (KeySize() > 0); it is used to derive the
// wrapping key for the secret envelope, never the data key itself.
func (h *Header) Encode(password []byte) ([]byte, error) {
	secretIV := make([]byte, h.Cipher.IVSize())
	if len(secretIV) > 0 {
		if _, err := rand.Read(secretIV); err != nil {
			return nil, fmt.Errorf("header: generate secret iv: %w", err)
		}
	}

	plainSecret, err := h.encodeSecret()
	if err != nil {
		return nil, err
	}

	wrapKey, err := h.wrappingKey(password)
	if err != nil {
		return nil, err
	}

	wrapCtx, err := cipher.NewContext(h.Cipher, wrapKey, secretIV)
	if err != nil {
		return nil, fmt.Errorf("header: build secret cipher: %w", err)
	}

	secret, err := wrapCtx.Encrypt(plainSecret)
	if err != nil {
		return nil, fmt.Errorf("header: encrypt secret: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	binary.Write(&buf, binary.BigEndian, revision)
	binary.Write(&buf, binary.BigEndian, uint32(h.Cipher))

	if err := writeKDF(&buf, h.KDF); err != nil {
		return nil, err
	}

	writeBytes(&buf, secretIV)
	writeBytes(&buf, secret)

	return buf.Bytes(), nil
}

// encodeSecret builds the plaintext that goes inside the encrypted
// envelope: the two magic canaries, the data key/IV, user data, and the
// tree plus summary counters.
func (h *Header) encodeSecret() ([]byte, error) {
	word, err := magicWord()
	if err != nil {
		return nil, fmt.Errorf("header: generate magic word: %w", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, word)
	binary.Write(&buf, binary.BigEndian, word)
	writeBytes(&buf, h.DataKey)
	writeBytes(&buf, h.DataIV)
	writeBytes(&buf, h.UserData)

	if h.Tree == nil {
		return nil, fmt.Errorf("header: encode: tree is nil")
	}
	buf.Write(h.Tree.Encode(nil))

	binary.Write(&buf, binary.BigEndian, h.Created)
	binary.Write(&buf, binary.BigEndian, h.Modified)
	binary.Write(&buf, binary.BigEndian, h.NFiles)

	return buf.Bytes(), nil
}

func (h *Header) wrappingKey(password []byte) ([]byte, error) {
	keyLen := h.Cipher.KeySize()
	if keyLen == 0 {
		return nil, nil
	}
	if h.KDF == nil {
		return nil, fmt.Errorf("header: cipher %s requires a kdf", h.Cipher)
	}
	return h.KDF.DeriveKey(password, keyLen)
}

// Decode parses the archive header out of buf, unwrapping the secret
// envelope with password. It returns the Header and the Tree decoded from
// it, wired to a Store built from the header's own cipher and data key.
func Decode(be backend.Backend, buf []byte, password []byte) (*Header, error) {
	if len(buf) < len(magic)+4+4 || !bytes.Equal(buf[:len(magic)], magic[:]) {
		return nil, ErrInvalidMagic
	}
	r := bytes.NewReader(buf[len(magic):])

	var rev, algVal uint32
	if err := binary.Read(r, binary.BigEndian, &rev); err != nil {
		return nil, fmt.Errorf("header: read revision: %w", err)
	}
	if rev != revision {
		return nil, &UnsupportedRevisionError{Revision: rev}
	}
	if err := binary.Read(r, binary.BigEndian, &algVal); err != nil {
		return nil, fmt.Errorf("header: read cipher: %w", err)
	}
	alg := cipher.Algorithm(algVal)

	kd, err := readKDF(r)
	if err != nil {
		return nil, err
	}

	secretIV, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("header: read secret iv: %w", err)
	}
	secret, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("header: read secret: %w", err)
	}

	h := &Header{Cipher: alg, KDF: kd}

	wrapKey, err := h.wrappingKey(password)
	if err != nil {
		return nil, err
	}

	wrapCtx, err := cipher.NewContext(alg, wrapKey, secretIV)
	if err != nil {
		return nil, fmt.Errorf("header: build secret cipher: %w", err)
	}

	plainSecret, err := wrapCtx.Decrypt(secret)
	if err != nil {
		if errors.Is(err, cipher.ErrNotTrustworthy) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("header: decrypt secret: %w", err)
	}

	if err := h.decodeSecret(be, alg, plainSecret); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Header) decodeSecret(be backend.Backend, alg cipher.Algorithm, plain []byte) error {
	r := bytes.NewReader(plain)

	var word1, word2 uint32
	if err := binary.Read(r, binary.BigEndian, &word1); err != nil {
		return fmt.Errorf("header: read magic word 1: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &word2); err != nil {
		return fmt.Errorf("header: read magic word 2: %w", err)
	}
	if word1 != word2 {
		return ErrWrongPassword
	}

	var err error
	if h.DataKey, err = readBytes(r); err != nil {
		return fmt.Errorf("header: read data key: %w", err)
	}
	if h.DataIV, err = readBytes(r); err != nil {
		return fmt.Errorf("header: read data iv: %w", err)
	}
	if h.UserData, err = readBytes(r); err != nil {
		return fmt.Errorf("header: read userdata: %w", err)
	}

	rest := plain[len(plain)-r.Len():]

	store, err := dataStore(be, alg, h.DataKey, h.DataIV)
	if err != nil {
		return fmt.Errorf("header: build data store: %w", err)
	}
	tr, rest, err := tree.Decode(store, rest)
	if err != nil {
		return fmt.Errorf("header: decode tree: %w", err)
	}
	h.Tree = tr

	tr2 := bytes.NewReader(rest)
	if err := binary.Read(tr2, binary.BigEndian, &h.Created); err != nil {
		return fmt.Errorf("header: read created: %w", err)
	}
	if err := binary.Read(tr2, binary.BigEndian, &h.Modified); err != nil {
		return fmt.Errorf("header: read modified: %w", err)
	}
	if err := binary.Read(tr2, binary.BigEndian, &h.NFiles); err != nil {
		return fmt.Errorf("header: read nfiles: %w", err)
	}

	return nil
}

func writeKDF(buf *bytes.Buffer, kd *kdf.KDF) error {
	if kd == nil {
		binary.Write(buf, binary.BigEndian, uint32(kdf.None))
		binary.Write(buf, binary.BigEndian, uint32(0))
		binary.Write(buf, binary.BigEndian, uint32(0))
		writeBytes(buf, nil)
		return nil
	}

	binary.Write(buf, binary.BigEndian, uint32(kd.Algorithm))
	binary.Write(buf, binary.BigEndian, uint32(kd.Digest))
	binary.Write(buf, binary.BigEndian, kd.Iterations)
	writeBytes(buf, kd.Salt)
	return nil
}

func readKDF(r *bytes.Reader) (*kdf.KDF, error) {
	var algVal, digestVal, iterations uint32
	if err := binary.Read(r, binary.BigEndian, &algVal); err != nil {
		return nil, fmt.Errorf("header: read kdf algorithm: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &digestVal); err != nil {
		return nil, fmt.Errorf("header: read kdf digest: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &iterations); err != nil {
		return nil, fmt.Errorf("header: read kdf iterations: %w", err)
	}
	salt, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("header: read kdf salt: %w", err)
	}

	if kdf.Algorithm(algVal) == kdf.None {
		return &kdf.KDF{Algorithm: kdf.None}, nil
	}

	return &kdf.KDF{
		Algorithm:  kdf.Algorithm(algVal),
		Digest:     kdf.Digest(digestVal),
		Iterations: iterations,
		Salt:       salt,
	}, nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return nil, err
	}
	return b, nil
}
