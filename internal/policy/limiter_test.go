package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDomainLimiter_NoSettingsPassThrough(t *testing.T) {
	t.Parallel()

	l := NewDomainLimiter()
	release, err := l.Acquire(context.Background(), "x.test", Politeness{})
	require.NoError(t, err)
	release()
}

func TestDomainLimiter_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	l := NewDomainLimiter()
	p := Politeness{MaxConcurrent: 2}

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "x.test", p)
			require.NoError(t, err)
			defer release()

			current := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if current <= old || atomic.CompareAndSwapInt64(&peak, old, current) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestDomainLimiter_DelaySpacesRequests(t *testing.T) {
	t.Parallel()

	l := NewDomainLimiter()
	p := Politeness{Delay: 50 * time.Millisecond}

	start := time.Now()
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(context.Background(), "slow.test", p)
		require.NoError(t, err)
		release()
	}
	// First token is free; the remaining two wait one delay each.
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestDomainLimiter_CanceledContext(t *testing.T) {
	t.Parallel()

	l := NewDomainLimiter()
	p := Politeness{MaxConcurrent: 1}

	release, err := l.Acquire(context.Background(), "busy.test", p)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "busy.test", p)
	require.Error(t, err)
}

func TestDomainLimiter_DomainsAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewDomainLimiter()
	p := Politeness{MaxConcurrent: 1}

	releaseA, err := l.Acquire(context.Background(), "a.test", p)
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b.test", p)
	require.NoError(t, err)
	releaseB()
}
