// Package ids generates the opaque identifiers used for watches, snapshots,
// and changes: 128 bits of randomness, rendered as lowercase hex.
package ids

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Generator produces unique identifier strings.
type Generator func() string

// New returns a 128-bit random identifier as 32 lowercase hex characters.
// It is backed by google/uuid's CSPRNG-sourced random bytes rather than the
// UUID text form, since the store's identifiers are opaque hex, not RFC 9562
// strings.
func New() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Default is the package-level generator used unless a caller overrides it.
var Default Generator = New
