// Package jobs issues the identifiers that key every per-request resource:
// scratch directories, output artifacts and request records.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// RequestPrefix is prepended to every request ID.
const RequestPrefix = "wm-"

// NewRequestID returns a fresh random request ID such as
// "wm-3f1c9a0e5b7d4c1e8a2b6d0f4e9c7a1b".
func NewRequestID() string {
	return RequestPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidRequestID reports whether id has the shape NewRequestID produces.
// Used to reject path parameters before they reach a store.
func ValidRequestID(id string) bool {
	raw, ok := strings.CutPrefix(id, RequestPrefix)
	if !ok || len(raw) != 32 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
