// Package digest provides content hashing for blueprints, configs and artifacts.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/crypto/blake2b"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
)

// Hasher computes hex-encoded digests
type Hasher struct {
	algorithm Algorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm Algorithm) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// Default returns a SHA-256 hasher
func Default() *Hasher {
	return NewHasher(SHA256)
}

// Algorithm returns the configured algorithm
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash computes a digest of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case BLAKE2b:
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashString computes a digest of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashJSON computes a digest of the canonical JSON form of v.
// Map keys are sorted so equal values always hash equally.
func (h *Hasher) HashJSON(v any) (string, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return h.Hash(data), nil
}

// HashFields computes a digest from multiple fields, independent of their order
func (h *Hasher) HashFields(fields ...string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return h.HashString(strings.Join(sorted, "|"))
}

// Artifact returns the BLAKE2b digest used for checkpoint artifacts
func Artifact(source string) string {
	return NewHasher(BLAKE2b).HashString(source)
}

// Short truncates a digest for display
func Short(d string) string {
	if len(d) < 12 {
		return d
	}
	return d[:12]
}
