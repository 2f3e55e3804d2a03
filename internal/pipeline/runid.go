package pipeline

import "github.com/google/uuid"

// newRunID returns a time-ordered run identifier (UUIDv7). It falls back to
// a random UUID if the clock-based generator fails.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
