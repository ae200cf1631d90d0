// Package idgen provides hashing and encoding primitives: base36 node-id
// generation, hex digesting of record keys, and the 32-bit hashes the
// Merkle summary tree uses for routing and content fingerprints.
package idgen

import (
	"math/big"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of exactly length
// characters, zero-padding on the left or truncating to the least
// significant digits as needed.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// NewNodeID derives a stable base36 node identifier from an arbitrary seed
// (hostname, process id, random bytes supplied by the caller). It is not
// cryptographically unique — callers needing global uniqueness should seed
// with enough entropy.
func NewNodeID(seed []byte, length int) string {
	sum := xxhash.Sum64(seed)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (8 * (7 - i)))
	}
	return EncodeBase36(buf[:], length)
}

// HexDigest returns the lowercase hex-encoded 64-bit xxhash digest of key.
// The Merkle tree routes keys with Hash32Hex instead.
func HexDigest(key string) string {
	return HexDigest64(xxhash.Sum64String(key))
}

// Hash32 returns a 32-bit non-cryptographic hash of data, used for Merkle
// leaf routing and content fingerprints where a compact sum-friendly hash
// is preferable to a full 64-bit digest.
func Hash32(data string) uint32 {
	sum := xxhash.Sum64String(data)
	return uint32(sum) ^ uint32(sum>>32)
}

// Hash32Hex renders a Hash32 result as 8 lowercase hex digits, used to
// derive the Merkle tree's routing path for a key.
func Hash32Hex(data string) string {
	const hexDigits = "0123456789abcdef"
	h := Hash32(data)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		shift := uint(28 - 4*i)
		buf[i] = hexDigits[(h>>shift)&0xf]
	}
	return string(buf)
}

// CompoundDigest combines several field values into a single stable digest
// string suitable for keying a compound index entry.
func CompoundDigest(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return HexDigest64(h.Sum64())
}

// HexDigest64 hex-encodes a raw 64-bit hash value.
func HexDigest64(sum uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 0; i < 16; i++ {
		shift := uint(60 - 4*i)
		buf[i] = hexDigits[(sum>>shift)&0xf]
	}
	return string(buf)
}
