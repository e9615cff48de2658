package verify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireReleaseCycle(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, acquired, err := locker.TryAcquire(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, acquired)

	_, again, err := locker.TryAcquire(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, again, "held lock must not be acquired twice")

	release()

	release2, reacquired, err := locker.TryAcquire(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, reacquired, "released lock must be available again")
	release2()
}

func TestMemoryLocker_KeysAreIndependent(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	releaseA, acquiredA, err := locker.TryAcquire(ctx, "a.example.com")
	require.NoError(t, err)
	require.True(t, acquiredA)
	defer releaseA()

	releaseB, acquiredB, err := locker.TryAcquire(ctx, "b.example.com")
	require.NoError(t, err)
	assert.True(t, acquiredB, "locks on different keys must not contend")
	if acquiredB {
		releaseB()
	}
}

func TestMemoryLocker_SingleWinnerUnderContention(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, acquired, err := locker.TryAcquire(ctx, "contested.example.com"); err == nil && acquired {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one goroutine may hold the lock")
}
