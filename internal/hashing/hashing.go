// Package hashing computes content digests for catalogued recordings.
// BLAKE3 is the primary digest and SHA-256 the secondary, so entries can
// be cross-checked against tools that only speak one of the two.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/zeebo/blake3"
)

// hexPattern matches a lowercase 256-bit hex digest (64 characters).
var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Digest holds the digests of a single piece of content.
type Digest struct {
	// BLAKE3 is the lowercase hex BLAKE3-256 digest.
	BLAKE3 string

	// SHA256 is the lowercase hex SHA-256 digest.
	SHA256 string

	// Size is the number of bytes hashed.
	Size int64
}

// File computes both digests of the file at path in a single pass.
// Recordings run to gigabytes, so the file is streamed rather than read
// into memory.
func File(path string) (*Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	return FromReader(f)
}

// FromReader computes both digests of everything r yields.
func FromReader(r io.Reader) (*Digest, error) {
	b3 := blake3.New()
	s2 := sha256.New()

	n, err := io.Copy(io.MultiWriter(b3, s2), r)
	if err != nil {
		return nil, fmt.Errorf("hashing content: %w", err)
	}

	return &Digest{
		BLAKE3: hex.EncodeToString(b3.Sum(nil)),
		SHA256: hex.EncodeToString(s2.Sum(nil)),
		Size:   n,
	}, nil
}

// Bytes computes both digests of an in-memory buffer.
func Bytes(data []byte) *Digest {
	b3 := blake3.Sum256(data)
	s2 := sha256.Sum256(data)
	return &Digest{
		BLAKE3: hex.EncodeToString(b3[:]),
		SHA256: hex.EncodeToString(s2[:]),
		Size:   int64(len(data)),
	}
}

// IsValid reports whether s looks like a 256-bit lowercase hex digest.
func IsValid(s string) bool {
	return hexPattern.MatchString(s)
}
