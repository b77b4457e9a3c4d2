// Package md5 provides the 128-bit content hash used to name samples.
package md5

import (
	"crypto/md5" //nolint:gosec // identifier for dedupe and file naming, not integrity
	"encoding/hex"
)

// Hasher implements crawler.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a lowercase hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) //nolint:gosec // see import
	return hex.EncodeToString(sum[:]), nil
}
