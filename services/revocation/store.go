// Package revocation tracks which outstanding tokens are no longer honoured.
//
// Local tokens carry a per-subject generation number; advancing the
// generation invalidates every token issued before. External provider tokens
// cannot carry our generation, so they are checked against a per-subject
// cutoff time instead.
package revocation

import (
	"context"
	"time"
)

// Generations tracks the revocation generation of local tokens
type Generations interface {
	// Current returns the subject's current generation (0 when never advanced)
	Current(ctx context.Context, subject string) (int64, error)

	// Advance bumps the subject's generation and returns the new value
	Advance(ctx context.Context, subject string) (int64, error)
}

// Cutoffs tracks revocation times for external provider tokens
type Cutoffs interface {
	// Revoke rejects every token for subject issued at or before at
	Revoke(ctx context.Context, subject string, at time.Time) error

	// RevokedAt returns the subject's cutoff, if any
	RevokedAt(ctx context.Context, subject string) (time.Time, bool, error)
}

// Store provides both revocation facets
type Store interface {
	Generations
	Cutoffs
	Ping(ctx context.Context) error
}

// IssuedBeforeCutoff reports whether a token issued at iat falls at or before cutoff.
// Provider timestamps have second precision, so the comparison is done in seconds.
func IssuedBeforeCutoff(iat, cutoff time.Time) bool {
	return iat.Unix() <= cutoff.Unix()
}
