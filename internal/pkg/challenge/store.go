// Package challenge holds the live WebAuthn ceremony state between the
// options-generation call and the verification call. Entries are single-use
// and expire on a fixed TTL whether or not they are ever consumed.
package challenge

import (
	"context"
	"errors"
	"time"
)

// Flow distinguishes the two ceremony types. A principal may hold at most one
// live challenge per flow.
type Flow string

const (
	FlowRegistration   Flow = "registration"
	FlowAuthentication Flow = "authentication"
)

// ErrNotFound is returned when no live challenge exists for the principal and
// flow: never issued, already consumed, or swept after expiry.
var ErrNotFound = errors.New("challenge: not found")

// Store issues and redeems one-time ceremony state scoped to a principal and
// flow. Issue overwrites any previous live entry (last write wins for a
// retrying client). Consume atomically removes the entry so a second
// redemption of the same challenge always fails.
type Store interface {
	Issue(ctx context.Context, principal int64, flow Flow, data []byte) error
	Get(ctx context.Context, principal int64, flow Flow) ([]byte, error)
	Consume(ctx context.Context, principal int64, flow Flow) ([]byte, error)
	Close() error
}

// DefaultTTL bounds the release-to-redeem window of a ceremony. It must be
// longer than a UI round-trip but short enough to close abandoned flows.
const DefaultTTL = 5 * time.Minute

// DefaultSweepInterval is how often expired entries are reaped.
const DefaultSweepInterval = 5 * time.Minute
