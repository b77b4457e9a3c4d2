// Package storage holds helpers shared by the sample content stores.
package storage

import (
	"errors"
	"fmt"
)

// ErrInvalidHash is returned when a store is asked to use a key that is not a
// lowercase hex digest. Keys become file and object names, so anything else is
// refused outright.
var ErrInvalidHash = errors.New("invalid content hash")

// ValidateHash checks that hash is a non-empty lowercase hex string.
func ValidateHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: empty", ErrInvalidHash)
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("%w: %q", ErrInvalidHash, hash)
		}
	}
	return nil
}
