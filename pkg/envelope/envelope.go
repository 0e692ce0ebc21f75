// Package envelope seals server-computed state into an opaque string that
// the client bundle of the same build can decode.
//
// The payload is JSON encoded, padded with PKCS#7 and encrypted with
// AES-256-CBC under the per-build key. Each envelope carries a fresh 32-byte
// random IV; CBC chains from its first block. An HMAC-SHA256 tag over the
// whole IV and the ciphertext makes tampering and wrong keys detectable. The
// MAC key is derived from the build key with HKDF-SHA256.
//
// The decrypting key ships with the client bundle. Envelopes resist casual
// inspection and tampering in transit; they are not confidential from the
// client that receives them.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/vango-dev/splitrender/internal/errors"
)

// KeySize is the required length of the build key.
const KeySize = 32

// IVSize is the length of the per-envelope initialization vector as
// transmitted. Only the first aes.BlockSize bytes seed CBC.
const IVSize = 32

// MACSize is the length of the authentication tag.
const MACSize = sha256.Size

var (
	// ErrCryptoBackendUnavailable is returned when the random source or the
	// cipher cannot be used.
	ErrCryptoBackendUnavailable = errors.New("E110")

	// ErrDecrypt is returned by Open for wrong keys and modified envelopes.
	ErrDecrypt = errors.New("E111")

	// ErrInvalidKey is returned for keys that are not KeySize bytes.
	ErrInvalidKey = errors.New("E112")
)

// Envelope is one sealed payload.
type Envelope struct {
	IV         []byte
	Ciphertext []byte
	MAC        []byte
}

// String returns the transport form: base64(IV || Ciphertext || MAC).
func (e Envelope) String() string {
	buf := make([]byte, 0, len(e.IV)+len(e.Ciphertext)+len(e.MAC))
	buf = append(buf, e.IV...)
	buf = append(buf, e.Ciphertext...)
	buf = append(buf, e.MAC...)
	return base64.StdEncoding.EncodeToString(buf)
}

// Parse decodes the transport form produced by String.
func Parse(s string) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Envelope{}, errors.New("E111").WithDetail("not base64").Wrap(err)
	}
	body := len(raw) - IVSize - MACSize
	if body < aes.BlockSize || body%aes.BlockSize != 0 {
		return Envelope{}, errors.New("E111").WithDetailf("envelope is %d bytes", len(raw))
	}
	return Envelope{
		IV:         raw[:IVSize],
		Ciphertext: raw[IVSize : IVSize+body],
		MAC:        raw[IVSize+body:],
	}, nil
}

// Sealer seals payloads using Rand for IV generation.
// The zero value uses crypto/rand.
type Sealer struct {
	Rand io.Reader
}

// Seal encrypts payload under key with the default Sealer.
func Seal(key []byte, payload any) (Envelope, error) {
	return Sealer{}.Seal(key, payload)
}

// Open decrypts the transport string s under key and decodes the JSON
// payload into v.
func Open(key []byte, s string, v any) error {
	env, err := Parse(s)
	if err != nil {
		return err
	}
	plain, err := env.Decrypt(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return errors.New("E111").WithDetail("payload is not JSON").Wrap(err)
	}
	return nil
}

// Seal encrypts the JSON encoding of payload under key.
// Every call draws a fresh IV.
func (s Sealer) Seal(key []byte, payload any) (Envelope, error) {
	mk, err := macKey(key)
	if err != nil {
		return Envelope{}, err
	}

	plain, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	r := s.Rand
	if r == nil {
		r = rand.Reader
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return Envelope{}, errors.New("E110").WithDetail("random source failed").Wrap(err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return Envelope{}, errors.New("E110").Wrap(err)
	}
	padded := pad(plain)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv[:aes.BlockSize]).CryptBlocks(ciphertext, padded)

	return Envelope{
		IV:         iv,
		Ciphertext: ciphertext,
		MAC:        sign(mk, iv, ciphertext),
	}, nil
}

// Decrypt verifies the tag and returns the plaintext JSON.
func (e Envelope) Decrypt(key []byte) ([]byte, error) {
	mk, err := macKey(key)
	if err != nil {
		return nil, err
	}
	if len(e.IV) != IVSize || len(e.Ciphertext) == 0 || len(e.Ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("E111").WithDetail("malformed envelope")
	}
	if !hmac.Equal(e.MAC, sign(mk, e.IV, e.Ciphertext)) {
		return nil, errors.New("E111").WithDetail("authentication failed")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.New("E110").Wrap(err)
	}
	plain := make([]byte, len(e.Ciphertext))
	cipher.NewCBCDecrypter(block, e.IV[:aes.BlockSize]).CryptBlocks(plain, e.Ciphertext)

	out, ok := unpad(plain)
	if !ok {
		return nil, errors.New("E111").WithDetail("bad padding")
	}
	return out, nil
}

// macKey validates the build key and expands it into the MAC key.
// The build key itself is the AES key.
func macKey(key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.New("E112").WithDetailf("key is %d bytes", len(key))
	}
	mk := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte("splitrender envelope mac")), mk); err != nil {
		return nil, errors.New("E110").Wrap(err)
	}
	return mk, nil
}

func sign(macKey, iv, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// pad applies PKCS#7 padding to a whole number of AES blocks.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
