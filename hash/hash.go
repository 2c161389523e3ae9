// Package hash provides an opaque git object identity that works uniformly
// across SHA-1 and SHA-256 object formats.
package hash

import (
	"encoding/hex"
	"hash"
	"slices"
)

// Hash is a fixed-width binary object identity. Its length depends on the
// remote's announced object format (20 bytes for SHA-1, 32 for SHA-256); the
// rest of this module never inspects the length and treats Hash opaquely.
type Hash []byte

// Zero is the empty/absent hash, used e.g. for receive-pack's old-ref
// placeholder or as a not-found sentinel.
var Zero Hash

// FromHex decodes a hex-encoded object id. An empty string decodes to Zero.
func FromHex(hs string) (Hash, error) {
	if len(hs) == 0 {
		return Zero, nil
	}

	b, err := hex.DecodeString(hs)
	if err != nil {
		return Zero, err
	}
	return Hash(b), nil
}

// MustFromHex is like FromHex but panics on error. Intended for tests and
// other call sites where the hex string is known to be well-formed.
func MustFromHex(hs string) Hash {
	h, err := FromHex(hs)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Is reports whether h and other name the same object.
func (h Hash) Is(other Hash) bool {
	return slices.Equal(h, other)
}

// IsZero reports whether h is the empty/absent hash.
func (h Hash) IsZero() bool {
	return len(h) == 0
}

// Hasher accumulates bytes toward a git object hash.
type Hasher struct {
	hash.Hash
}
