package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"io"
	"reflect"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestRoundTrip(t *testing.T) {
	payloads := []any{
		map[string]any{"config": map[string]any{"apiUrl": "https://api.example.com"}, "state": nil},
		map[string]any{"user": "ana", "roles": []any{"admin", "editor"}, "count": 3.0},
		"plain string",
		[]any{},
		map[string]any{"exact": "sixteen bytes!!"},
	}

	key := testKey(1)
	for _, p := range payloads {
		sealed, err := Seal(key, p)
		if err != nil {
			t.Fatalf("Seal(%v) error = %v", p, err)
		}

		var got any
		if err := Open(key, sealed.String(), &got); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("round trip = %#v, want %#v", got, p)
		}
	}
}

func TestWrongKeyFails(t *testing.T) {
	sealed, err := Seal(testKey(1), map[string]string{"secret": "value"})
	if err != nil {
		t.Fatal(err)
	}

	for b := byte(2); b < 20; b++ {
		var got any
		err := Open(testKey(b), sealed.String(), &got)
		if !errors.Is(err, ErrDecrypt) {
			t.Fatalf("Open(wrong key %d) error = %v, want ErrDecrypt", b, err)
		}
		if got != nil {
			t.Fatalf("Open(wrong key) wrote %v into the destination", got)
		}
	}
}

func TestTamperedEnvelopeFails(t *testing.T) {
	key := testKey(3)
	sealed, err := Seal(key, map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed.String())
	for _, i := range []int{0, IVSize - 1, IVSize, len(raw) - 1} {
		mutated := append([]byte(nil), raw...)
		mutated[i] ^= 0x01

		var got any
		if err := Open(key, base64.StdEncoding.EncodeToString(mutated), &got); !errors.Is(err, ErrDecrypt) {
			t.Errorf("flipping byte %d: error = %v, want ErrDecrypt", i, err)
		}
	}
}

func TestFreshIVPerSeal(t *testing.T) {
	key := testKey(4)
	a, _ := Seal(key, "same")
	b, _ := Seal(key, "same")

	if bytes.Equal(a.IV, b.IV) {
		t.Error("two seals reused the same IV")
	}
	if a.String() == b.String() {
		t.Error("two seals of the same payload produced identical envelopes")
	}
	if len(a.IV) != IVSize {
		t.Errorf("IV length = %d, want %d", len(a.IV), IVSize)
	}
}

func TestWireLayout(t *testing.T) {
	key := testKey(6)
	env, err := Seal(key, map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(env.IV) != 32 {
		t.Fatalf("IV length = %d, want 32", len(env.IV))
	}

	raw, err := base64.StdEncoding.DecodeString(env.String())
	if err != nil {
		t.Fatal(err)
	}
	// {"a":1} is 7 bytes and pads to one block.
	if want := 32 + aes.BlockSize + MACSize; len(raw) != want {
		t.Fatalf("decoded length = %d, want %d", len(raw), want)
	}

	// The build key is the AES key and CBC chains from the first IV block.
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	plain := make([]byte, len(env.Ciphertext))
	cipher.NewCBCDecrypter(block, env.IV[:aes.BlockSize]).CryptBlocks(plain, env.Ciphertext)
	if got, ok := unpad(plain); !ok || string(got) != `{"a":1}` {
		t.Errorf("plaintext = %q, want %q", got, `{"a":1}`)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestCryptoBackendUnavailable(t *testing.T) {
	_, err := Sealer{Rand: failingReader{}}.Seal(testKey(5), "x")
	if !errors.Is(err, ErrCryptoBackendUnavailable) {
		t.Errorf("Seal() error = %v, want ErrCryptoBackendUnavailable", err)
	}
}

func TestInvalidKey(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33} {
		if _, err := Seal(make([]byte, size), "x"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Seal(key of %d bytes) error = %v, want ErrInvalidKey", size, err)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"too short", base64.StdEncoding.EncodeToString(make([]byte, IVSize+MACSize))},
		{"unaligned body", base64.StdEncoding.EncodeToString(make([]byte, IVSize+MACSize+17))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); !errors.Is(err, ErrDecrypt) {
				t.Errorf("Parse() error = %v, want ErrDecrypt", err)
			}
		})
	}
}

func TestPadding(t *testing.T) {
	for n := 0; n < 40; n++ {
		in := bytes.Repeat([]byte{'a'}, n)
		padded := pad(in)
		if len(padded)%16 != 0 || len(padded) <= n {
			t.Fatalf("pad(%d bytes) produced %d bytes", n, len(padded))
		}
		out, ok := unpad(padded)
		if !ok || !bytes.Equal(out, in) {
			t.Fatalf("unpad(pad(%d bytes)) = %q, %v", n, out, ok)
		}
	}

	if _, ok := unpad([]byte{1, 2, 3, 0}); ok {
		t.Error("unpad should reject a zero pad byte")
	}
}
