// Package identity mints the per-mount token that tells a reload of the owning
// page apart from a second page opened on the same attempt.
package identity

import (
	"github.com/google/uuid"
)

// New returns a fresh random (v4) session identity.
func New() string {
	return uuid.NewString()
}

// Parse validates an identity presented by a client and returns its canonical
// form. Malformed or empty input reports false.
func Parse(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.Version() != 4 {
		return "", false
	}
	return id.String(), true
}

// Resolve returns the presented identity when it is valid, otherwise a new one.
func Resolve(presented string) string {
	if id, ok := Parse(presented); ok {
		return id
	}
	return New()
}
