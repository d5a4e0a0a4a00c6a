package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduplicator is a single-process Deduplicator used in tests and
// development. Same contract as the redis implementation.
type MemoryDeduplicator struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
}

// NewMemoryDeduplicator creates an in-memory deduplicator.
func NewMemoryDeduplicator(retention time.Duration) *MemoryDeduplicator {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemoryDeduplicator{
		seen:      make(map[string]time.Time),
		retention: retention,
	}
}

func (d *MemoryDeduplicator) IsProcessed(_ context.Context, channel, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[key(channel, messageID)]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(d.seen, key(channel, messageID))
		return false, nil
	}
	return true, nil
}

func (d *MemoryDeduplicator) MarkProcessed(_ context.Context, channel, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key(channel, messageID)
	if exp, ok := d.seen[k]; ok && time.Now().Before(exp) {
		return false, nil
	}
	d.seen[k] = time.Now().Add(d.retention)
	return true, nil
}
