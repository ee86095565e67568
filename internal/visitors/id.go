package visitors

import (
	"github.com/google/uuid"
)

// GenerateUID returns a new opaque visitor identifier.
// UUIDv7 combines a millisecond timestamp with random bits, so identifiers
// are unique and unguessable while still sorting by creation time.
func GenerateUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		return uuid.NewString()
	}
	return id.String()
}
