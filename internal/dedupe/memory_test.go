package dedupe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemory(Options{})
	})
}

func TestMemoryClock(t *testing.T) {
	runClockContract(t, func(t *testing.T, opts Options) (Store, func(time.Duration)) {
		return NewMemory(opts), nil
	})
}

func TestMemoryPrune(t *testing.T) {
	runPruneContract(t, func(t *testing.T, opts Options) Store {
		return NewMemory(opts)
	})
}

func TestMemoryEvictsOldestBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemory(Options{MaxEntries: 3, Now: clock.Now})

	for i := range 5 {
		require.NoError(t, s.MarkProcessed(ctx, fmt.Sprintf("d-%d", i), ""))
		clock.Advance(time.Second)
	}
	n, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for i, want := range []bool{false, false, true, true, true} {
		dup, err := s.IsDuplicate(ctx, fmt.Sprintf("d-%d", i))
		require.NoError(t, err)
		assert.Equal(t, want, dup, "d-%d", i)
	}
}

func TestMemoryClaimsDoNotCountTowardCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(Options{MaxEntries: 1})

	require.NoError(t, s.MarkProcessed(ctx, "kept", ""))
	for i := range 5 {
		claim(t, s, fmt.Sprintf("c-%d", i))
	}

	dup, err := s.IsDuplicate(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestMemoryTrimsWhitespaceInIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(Options{})

	require.NoError(t, s.MarkProcessed(ctx, " abc ", ""))
	dup, err := s.IsDuplicate(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, dup)
}
