package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInflightGuardAcquireRelease(t *testing.T) {
	guard := newInflightGuard()
	key := inflightKey(1, "WRITING")

	require.True(t, guard.Acquire(key))
	require.False(t, guard.Acquire(key))

	// A different category for the same student is an independent key.
	require.True(t, guard.Acquire(inflightKey(1, "SPEAKING")))
	require.True(t, guard.Acquire(inflightKey(2, "WRITING")))

	guard.Release(key)
	require.True(t, guard.Acquire(key))

	// Releasing an unheld key must not panic or free someone else's slot.
	guard.Release("student:99:category:READING")
	require.False(t, guard.Acquire(key))
}

func TestInflightGuardSingleWinnerUnderContention(t *testing.T) {
	guard := newInflightGuard()
	key := inflightKey(7, "WRITING")

	var wg sync.WaitGroup
	wins := make(chan struct{}, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if guard.Acquire(key) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	require.Equal(t, 1, count)
}
