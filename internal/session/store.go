// Package session holds the dialogue session store. The store is the only
// shared mutable state between request workers besides the deduplicator, so
// both implementations serialize updates per session id.
package session

import (
	"context"
	"errors"
	"time"

	"banking-chatbot/engine/internal/models"
)

// ErrConflict is returned when an update repeatedly loses the
// compare-and-set race for a session. Callers treat it as a failed turn,
// never as a half-applied one.
var ErrConflict = errors.New("session update conflict")

// Patch describes one transition to persist. Data is merged additively into
// the existing bag; State overwrites only when non-empty; ExtendTTL pushes
// the expiry forward when positive (sliding channels).
type Patch struct {
	State     string
	Data      models.DataBag
	ExtendTTL time.Duration
}

// Store is the session persistence contract. Any backend with per-key atomic
// read-modify-write and TTL expiry satisfies it.
type Store interface {
	// Create starts a new active session for owner on channel, ending any
	// prior active session for that (channel, owner) pair atomically.
	Create(ctx context.Context, channel, owner, initialState string, data models.DataBag, ttl time.Duration) (*models.Session, error)

	// Get returns the session, or nil if it is absent, ended, or past its
	// expiry. Expired sessions are never returned.
	Get(ctx context.Context, id string) (*models.Session, error)

	// GetActiveByOwner returns the single active session for the pair, or nil.
	GetActiveByOwner(ctx context.Context, channel, owner string) (*models.Session, error)

	// Update applies the patch. Returns false when the session no longer
	// exists or is no longer active; callers treat false as "session
	// expired, re-enter via WELCOME".
	Update(ctx context.Context, id string, patch Patch) (bool, error)

	// End marks the session ended. Subsequent Get returns nil.
	End(ctx context.Context, id string) (bool, error)
}
