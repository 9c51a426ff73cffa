package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashSize is the length of a rendered digest in hex characters.
const HashSize = 2 * sha1.Size

// Hash is a 40-character lowercase hex-encoded SHA-1 digest of a framed object.
type Hash string

// ParseHash validates s as a full lowercase hex digest.
func ParseHash(s string) (Hash, error) {
	if !isHexHashComponent(s, HashSize) {
		return "", fmt.Errorf("invalid object hash %q", s)
	}
	return Hash(s), nil
}

// Digest computes the SHA-1 of the complete framed object, header included.
func Digest(f Framed) Hash {
	sum := sha1.Sum(f)
	return Hash(hex.EncodeToString(sum[:]))
}

// Digest is shorthand for Digest(f).
func (f Framed) Digest() Hash {
	return Digest(f)
}

// HashObject computes the digest of the envelope "type len\0content" without
// touching any store.
func HashObject(objType Type, data []byte) Hash {
	return Digest(Encode(objType, data))
}

// isHexHashComponent reports whether s is exactly expectedLen lowercase hex
// characters.
func isHexHashComponent(s string, expectedLen int) bool {
	if len(s) != expectedLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
