// Package keys derives fixed-width store keys from emails and raw tokens.
//
// The derivation is deliberately non-cryptographic: its only job is to bound
// key size and keep literal emails and tokens out of the key space. Liveness
// and integrity come from the session store and the token signatures, never
// from these keys.
package keys

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// Kind scopes a derived key to the identifier class it was built from, so an
// email and a token with identical bytes can never land on the same key.
type Kind uint8

const (
	KindEmail Kind = iota
	KindAccess
	KindRefresh
)

func (k Kind) prefix() string {
	switch k {
	case KindEmail:
		return "em:"
	case KindAccess:
		return "at:"
	case KindRefresh:
		return "rt:"
	default:
		return "xx:"
	}
}

// Deriver computes store keys with murmur3-128. The seed is a configuration
// parameter; all processes sharing one session store must agree on it.
type Deriver struct {
	seed uint32
}

// NewDeriver creates a Deriver with the given murmur seed.
func NewDeriver(seed uint32) Deriver {
	return Deriver{seed: seed}
}

// Derive maps input to a kind-prefixed, 32-hex-character key. It is a pure
// function: the same kind and input always produce the same key, and the
// output length is fixed regardless of input length.
func (d Deriver) Derive(kind Kind, input string) string {
	h1, h2 := murmur3.Sum128WithSeed([]byte(input), d.seed)

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], h1)
	binary.BigEndian.PutUint64(buf[8:], h2)

	return kind.prefix() + hex.EncodeToString(buf[:])
}
