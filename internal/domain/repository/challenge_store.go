package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrChallengeNotFound is returned when a key is missing or has expired.
var ErrChallengeNotFound = errors.New("challenge not found")

// ChallengeStore keeps short-lived secrets that must never reach a client:
// phone verification ids, pending second-factor credentials and pending
// sign-in results. Values are opaque bytes.
type ChallengeStore interface {
	// Put stores value under key for ttl, replacing any previous value.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value without consuming it.
	Get(ctx context.Context, key string) ([]byte, error)

	// Take returns the value and deletes it atomically. At most one caller
	// observes a given value.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
