package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkProcessedFirstWins(t *testing.T) {
	d := NewMemoryDeduplicator(time.Hour)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "ussd", "req-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.MarkProcessed(ctx, "ussd", "req-1")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestMessageIDsAreChannelScoped(t *testing.T) {
	d := NewMemoryDeduplicator(time.Hour)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "whatsapp", "id-1")
	require.NoError(t, err)
	assert.True(t, first)

	// Same id on the other channel is a different message.
	first, err = d.MarkProcessed(ctx, "ussd", "id-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestIsProcessed(t *testing.T) {
	d := NewMemoryDeduplicator(time.Hour)
	ctx := context.Background()

	seen, err := d.IsProcessed(ctx, "whatsapp", "id-2")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = d.MarkProcessed(ctx, "whatsapp", "id-2")
	require.NoError(t, err)

	seen, err = d.IsProcessed(ctx, "whatsapp", "id-2")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRetentionExpires(t *testing.T) {
	d := NewMemoryDeduplicator(time.Millisecond)
	ctx := context.Background()

	_, err := d.MarkProcessed(ctx, "whatsapp", "id-3")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	first, err := d.MarkProcessed(ctx, "whatsapp", "id-3")
	require.NoError(t, err)
	assert.True(t, first, "expired entries admit the message again")
}

// Two identical messages racing through admission: exactly one may win.
func TestConcurrentMarkProcessedAdmitsExactlyOne(t *testing.T) {
	d := NewMemoryDeduplicator(time.Hour)
	ctx := context.Background()

	const racers = 50
	var wg sync.WaitGroup
	results := make(chan bool, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := d.MarkProcessed(ctx, "whatsapp", "contested")
			assert.NoError(t, err)
			results <- first
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for first := range results {
		if first {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
