package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared by store tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// claim asserts that id can be claimed and returns the token.
func claim(t *testing.T, s Store, id string) string {
	t.Helper()
	token, ok, err := s.Claim(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "claim %q", id)
	require.NotEmpty(t, token)
	return token
}

// claimed reports whether id can currently be claimed.
func claimed(t *testing.T, s Store, id string) bool {
	t.Helper()
	_, ok, err := s.Claim(context.Background(), id)
	require.NoError(t, err)
	return ok
}

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("unknown id is not duplicate", func(t *testing.T) {
		s := newStore(t)
		dup, err := s.IsDuplicate(ctx, "never-seen")
		require.NoError(t, err)
		assert.False(t, dup)
	})

	t.Run("mark processed twice equals once", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.MarkProcessed(ctx, "d-1", ""))
		dup, err := s.IsDuplicate(ctx, "d-1")
		require.NoError(t, err)
		assert.True(t, dup)

		require.NoError(t, s.MarkProcessed(ctx, "d-1", ""))
		dup, err = s.IsDuplicate(ctx, "d-1")
		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("claim is exclusive and not a processed record", func(t *testing.T) {
		s := newStore(t)
		claim(t, s, "d-2")
		assert.False(t, claimed(t, s, "d-2"), "second claim must lose while the first is in flight")

		dup, err := s.IsDuplicate(ctx, "d-2")
		require.NoError(t, err)
		assert.False(t, dup, "an in-flight claim is not a processed record")
	})

	t.Run("claims get distinct tokens", func(t *testing.T) {
		s := newStore(t)
		first := claim(t, s, "d-tok")
		require.NoError(t, s.Release(ctx, "d-tok", first))
		second := claim(t, s, "d-tok")
		assert.NotEqual(t, first, second)
	})

	t.Run("release allows reclaim", func(t *testing.T) {
		s := newStore(t)
		token := claim(t, s, "d-3")
		require.NoError(t, s.Release(ctx, "d-3", token))
		assert.True(t, claimed(t, s, "d-3"))
	})

	t.Run("release with a foreign token keeps the claim", func(t *testing.T) {
		s := newStore(t)
		claim(t, s, "d-5")
		require.NoError(t, s.Release(ctx, "d-5", "someone-else"))
		require.NoError(t, s.Release(ctx, "d-5", ""))
		assert.False(t, claimed(t, s, "d-5"))
	})

	t.Run("mark with a foreign token is refused", func(t *testing.T) {
		s := newStore(t)
		token := claim(t, s, "d-6")
		assert.ErrorIs(t, s.MarkProcessed(ctx, "d-6", "someone-else"), ErrClaimLost)
		assert.ErrorIs(t, s.MarkProcessed(ctx, "d-6", ""), ErrClaimLost)

		dup, err := s.IsDuplicate(ctx, "d-6")
		require.NoError(t, err)
		assert.False(t, dup)

		require.NoError(t, s.MarkProcessed(ctx, "d-6", token))
		dup, err = s.IsDuplicate(ctx, "d-6")
		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("claim then mark blocks later claims", func(t *testing.T) {
		s := newStore(t)
		token := claim(t, s, "d-4")
		require.NoError(t, s.MarkProcessed(ctx, "d-4", token))
		assert.False(t, claimed(t, s, "d-4"))

		// Release never removes a processed record.
		require.NoError(t, s.Release(ctx, "d-4", token))
		dup, err := s.IsDuplicate(ctx, "d-4")
		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.Claim(ctx, "  ")
		assert.ErrorIs(t, err, ErrEmptyID)
		assert.ErrorIs(t, s.MarkProcessed(ctx, "", "t"), ErrEmptyID)
		_, err = s.IsDuplicate(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyID)
		assert.ErrorIs(t, s.Release(ctx, "", "t"), ErrEmptyID)
	})

	t.Run("concurrent claims have exactly one winner", func(t *testing.T) {
		s := newStore(t)
		const workers = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, ok, err := s.Claim(ctx, "race-id")
				if err != nil {
					t.Errorf("Claim: %v", err)
					return
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("distinct ids do not interfere", func(t *testing.T) {
		s := newStore(t)
		for i := range 10 {
			claim(t, s, fmt.Sprintf("id-%d", i))
		}
	})

	t.Run("lease reports the claim lease", func(t *testing.T) {
		s := newStore(t)
		assert.Equal(t, DefaultClaimLease, s.Lease())
	})
}

// clockStore is a store under a controllable clock. advance moves time
// forward for every expiry the backend depends on.
type clockStore struct {
	Store
	advance func(d time.Duration)
}

// runClockContract exercises retention and lease expiry. newStore must
// honor opts.Now, or return an advance hook that moves the backend's own
// clock.
func runClockContract(t *testing.T, newStore func(t *testing.T, opts Options) (Store, func(time.Duration))) {
	ctx := context.Background()

	open := func(t *testing.T, opts Options) clockStore {
		clock := newFakeClock()
		opts.Now = clock.Now
		s, hook := newStore(t, opts)
		return clockStore{Store: s, advance: func(d time.Duration) {
			clock.Advance(d)
			if hook != nil {
				hook(d)
			}
		}}
	}

	t.Run("processed record expires after retention", func(t *testing.T) {
		s := open(t, Options{Retention: time.Hour, ClaimLease: time.Minute})

		require.NoError(t, s.MarkProcessed(ctx, "old", ""))
		s.advance(59 * time.Minute)
		dup, err := s.IsDuplicate(ctx, "old")
		require.NoError(t, err)
		assert.True(t, dup)

		s.advance(2 * time.Minute)
		dup, err = s.IsDuplicate(ctx, "old")
		require.NoError(t, err)
		assert.False(t, dup)

		assert.True(t, claimed(t, s, "old"), "expired record must not block a new claim")
	})

	t.Run("abandoned claim expires after lease", func(t *testing.T) {
		s := open(t, Options{Retention: time.Hour, ClaimLease: 30 * time.Second})

		claim(t, s, "stuck")
		s.advance(10 * time.Second)
		assert.False(t, claimed(t, s, "stuck"))

		s.advance(30 * time.Second)
		assert.True(t, claimed(t, s, "stuck"))
	})

	t.Run("stale release does not drop a newer claim", func(t *testing.T) {
		s := open(t, Options{Retention: time.Hour, ClaimLease: time.Minute})

		stale := claim(t, s, "slow")
		s.advance(2 * time.Minute)
		fresh := claim(t, s, "slow")

		// The first holder fails after its lease ran out.
		require.NoError(t, s.Release(ctx, "slow", stale))
		assert.False(t, claimed(t, s, "slow"), "a third delivery must not claim while the second is in flight")

		assert.ErrorIs(t, s.MarkProcessed(ctx, "slow", stale), ErrClaimLost)
		require.NoError(t, s.MarkProcessed(ctx, "slow", fresh))
		dup, err := s.IsDuplicate(ctx, "slow")
		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("mark after an expired unclaimed lease still records", func(t *testing.T) {
		s := open(t, Options{Retention: time.Hour, ClaimLease: time.Minute})

		token := claim(t, s, "late")
		s.advance(2 * time.Minute)
		require.NoError(t, s.MarkProcessed(ctx, "late", token))
		dup, err := s.IsDuplicate(ctx, "late")
		require.NoError(t, err)
		assert.True(t, dup)
	})

	t.Run("second mark does not extend retention", func(t *testing.T) {
		s := open(t, Options{Retention: time.Hour})

		require.NoError(t, s.MarkProcessed(ctx, "fixed", ""))
		s.advance(30 * time.Minute)
		require.NoError(t, s.MarkProcessed(ctx, "fixed", ""))
		s.advance(31 * time.Minute)

		dup, err := s.IsDuplicate(ctx, "fixed")
		require.NoError(t, err)
		assert.False(t, dup)
	})
}

// runPruneContract covers backends that prune on their own schedule rather
// than through key expiry.
func runPruneContract(t *testing.T, newStore func(t *testing.T, opts Options) Store) {
	ctx := context.Background()

	t.Run("prune removes expired records and claims", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, Options{Retention: time.Hour, ClaimLease: time.Minute, Now: clock.Now})

		require.NoError(t, s.MarkProcessed(ctx, "a", ""))
		require.NoError(t, s.MarkProcessed(ctx, "b", ""))
		claim(t, s, "c")

		clock.Advance(2 * time.Hour)
		require.NoError(t, s.MarkProcessed(ctx, "fresh", ""))

		removed, err := s.Prune(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		dup, err := s.IsDuplicate(ctx, "fresh")
		require.NoError(t, err)
		assert.True(t, dup)

		if c, ok := s.(Counter); ok {
			n, err := c.Entries(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		}
	})
}

func TestRunPrunerStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	s := NewMemory(Options{Retention: time.Millisecond, Now: clock.Now})
	require.NoError(t, s.MarkProcessed(context.Background(), "x", ""))
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan int, 8)
	done := make(chan struct{})
	go func() {
		RunPruner(ctx, s, 5*time.Millisecond, func(removed int, err error) {
			if err == nil {
				select {
				case reports <- removed:
				default:
				}
			}
		})
		close(done)
	}()

	select {
	case n := <-reports:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("pruner never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}
