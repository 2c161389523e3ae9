package hash

import (
	"crypto"
	"errors"
	"strconv"

	// Linking the algorithms git supports into the binary; their init
	// functions register the hash with the crypto package. Git still uses
	// SHA-1 by default but is transitioning to SHA-256:
	// https://git-scm.com/docs/hash-function-transition
	//nolint:gosec
	_ "crypto/sha1"
	_ "crypto/sha256"

	"github.com/nanoci/shalo/objtype"
)

// ErrUnlinkedAlgorithm is returned when asked to use a hash algorithm that
// isn't linked into the binary.
var ErrUnlinkedAlgorithm = errors.New("hash: algorithm is not linked into the binary")

// Object computes the git object hash of data: the object header
// ("<type> <size>\x00") followed by the content, hashed with algo.
func Object(algo crypto.Hash, t objtype.Type, data []byte) (Hash, error) {
	h, err := NewHasher(algo, t, int64(len(data)))
	if err != nil {
		return nil, err
	}

	if _, err := h.Write(data); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// NewHasher returns a Hasher with the object header already written; the
// caller writes only the object content.
func NewHasher(algo crypto.Hash, t objtype.Type, size int64) (Hasher, error) {
	if !algo.Available() {
		return Hasher{}, ErrUnlinkedAlgorithm
	}
	h := Hasher{Hash: algo.New()}

	chunks := [][]byte{
		t.Bytes(),
		[]byte(" "),
		[]byte(strconv.FormatInt(size, 10)),
		{0},
	}
	for _, chunk := range chunks {
		if _, err := h.Write(chunk); err != nil {
			return Hasher{}, err
		}
	}

	return h, nil
}
