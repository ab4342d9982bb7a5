package abi

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Key parameter values and their one-word encodings. Only uncompressed
// secp256k1 signing keys are representable.
const (
	KeyKtyEC        = "EC"
	KeyCrvSecp256k1 = "secp256k1"
	KeyAlgES256K    = "ES256K"
	KeyUseSig       = "sig"

	keyParamCode = 1 // every current parameter encodes as 1
)

// Key is a secp256k1 public key in its JWK shape: two 32-byte affine
// coordinates plus the fixed EC/secp256k1/ES256K/sig parameters.
//
// Memory layout: [kty, crv, alg, use, extra_ptr] where extra_ptr points at
// the 64 coordinate bytes, one byte per word.
type Key struct {
	Kty string
	Crv string
	Alg string
	Use string
	X   [32]byte
	Y   [32]byte
}

type keyJSON struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// MarshalJSON implements json.Marshaler.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyJSON{
		Kty: k.Kty, Crv: k.Crv, Alg: k.Alg, Use: k.Use,
		X: base64.URLEncoding.EncodeToString(k.X[:]),
		Y: base64.URLEncoding.EncodeToString(k.Y[:]),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *Key) UnmarshalJSON(data []byte) error {
	var raw keyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	x, err := base64.URLEncoding.DecodeString(raw.X)
	if err != nil {
		return fmt.Errorf("invalid x: %w", err)
	}
	y, err := base64.URLEncoding.DecodeString(raw.Y)
	if err != nil {
		return fmt.Errorf("invalid y: %w", err)
	}
	if len(x) != 32 || len(y) != 32 {
		return fmt.Errorf("coordinates must be 32 bytes, got %d and %d", len(x), len(y))
	}
	k.Kty, k.Crv, k.Alg, k.Use = raw.Kty, raw.Crv, raw.Alg, raw.Use
	copy(k.X[:], x)
	copy(k.Y[:], y)
	return nil
}

// Validate checks the JWK parameters and that (X, Y) is a point on the
// secp256k1 curve.
func (k Key) Validate() error {
	if k.Kty != KeyKtyEC {
		return fmt.Errorf("invalid kty %q", k.Kty)
	}
	if k.Crv != KeyCrvSecp256k1 {
		return fmt.Errorf("invalid crv %q", k.Crv)
	}
	if k.Alg != KeyAlgES256K {
		return fmt.Errorf("invalid alg %q", k.Alg)
	}
	if k.Use != KeyUseSig {
		return fmt.Errorf("invalid use %q", k.Use)
	}
	uncompressed := make([]byte, 0, 65)
	uncompressed = append(uncompressed, 0x04)
	uncompressed = append(uncompressed, k.X[:]...)
	uncompressed = append(uncompressed, k.Y[:]...)
	if _, err := secp256k1.ParsePubKey(uncompressed); err != nil {
		return fmt.Errorf("not a point on secp256k1: %w", err)
	}
	return nil
}

// ToHex returns the uncompressed SEC1 hex form, 0x04 || X || Y.
func (k Key) ToHex() string {
	return "0x04" + hex.EncodeToString(k.X[:]) + hex.EncodeToString(k.Y[:])
}

// Serialize implements [Value]: the four parameter words followed by the 64
// coordinate bytes, one per word.
func (k Key) Serialize() []uint64 {
	out := make([]uint64, 0, 4+64)
	out = append(out, keyParamCode, keyParamCode, keyParamCode, keyParamCode)
	for _, b := range k.X {
		out = append(out, uint64(b))
	}
	for _, b := range k.Y {
		out = append(out, uint64(b))
	}
	return out
}

// JSON implements [Value].
func (k Key) JSON() (json.RawMessage, error) {
	return json.Marshal(k)
}

func readKey(read MemoryReader, addr uint64) (Value, error) {
	for i := uint64(0); i < 4; i++ {
		code, err := readScalar(read, addr+i, "public key parameter")
		if err != nil {
			return nil, err
		}
		if code != keyParamCode {
			return nil, abiErr("invalid public key parameter %d at address %d", code, addr+i)
		}
	}
	extraPtr, err := readScalar(read, addr+4, "public key extra pointer")
	if err != nil {
		return nil, err
	}
	key := Key{Kty: KeyKtyEC, Crv: KeyCrvSecp256k1, Alg: KeyAlgES256K, Use: KeyUseSig}
	for i := uint64(0); i < 32; i++ {
		b, err := readScalar(read, extraPtr+i, "public key coordinate")
		if err != nil {
			return nil, err
		}
		key.X[i] = byte(b)
	}
	for i := uint64(0); i < 32; i++ {
		b, err := readScalar(read, extraPtr+32+i, "public key coordinate")
		if err != nil {
			return nil, err
		}
		key.Y[i] = byte(b)
	}
	return key, nil
}

// Zero reports whether the key is the all-zero placeholder.
func (k Key) Zero() bool {
	if k.Kty != "" {
		return false
	}
	for _, b := range k.X {
		if b != 0 {
			return false
		}
	}
	for _, b := range k.Y {
		if b != 0 {
			return false
		}
	}
	return true
}

func base64Std(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func base64StdDecode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func float32frombits(bits uint32) float32 { return math.Float32frombits(bits) }
func float64frombits(bits uint64) float64 { return math.Float64frombits(bits) }
