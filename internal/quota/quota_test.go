package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTryReserveWithinLimit(t *testing.T) {
	g := NewGuard(map[Provider]Limit{
		ProviderSearch: {Calls: 3, Window: time.Hour},
	})

	for i := 0; i < 3; i++ {
		assert.True(t, g.TryReserve(ProviderSearch), "reservation %d", i)
	}
	assert.False(t, g.TryReserve(ProviderSearch))
}

func TestDeniedReserveDoesNotMutate(t *testing.T) {
	g := NewGuard(map[Provider]Limit{
		ProviderLLM: {Calls: 1, Window: time.Hour},
	})

	assert.True(t, g.TryReserve(ProviderLLM))
	for i := 0; i < 5; i++ {
		assert.False(t, g.TryReserve(ProviderLLM))
	}
	assert.Equal(t, 0, g.Remaining(ProviderLLM))
}

func TestUnknownProviderAlwaysPermitted(t *testing.T) {
	g := NewGuard(nil)

	for i := 0; i < 100; i++ {
		assert.True(t, g.TryReserve(ProviderSearch))
	}
	assert.Equal(t, -1, g.Remaining(ProviderSearch))
}

func TestWindowRollover(t *testing.T) {
	now := time.Now()
	g := NewGuard(map[Provider]Limit{
		ProviderSearch: {Calls: 2, Window: time.Minute},
	})
	g.now = func() time.Time { return now }

	assert.True(t, g.TryReserve(ProviderSearch))
	assert.True(t, g.TryReserve(ProviderSearch))
	assert.False(t, g.TryReserve(ProviderSearch))

	// Crossing the window boundary resets the budget lazily.
	now = now.Add(time.Minute + time.Second)
	assert.True(t, g.TryReserve(ProviderSearch))
	assert.Equal(t, 1, g.Remaining(ProviderSearch))
}

func TestConcurrentReservationsNeverExceedLimit(t *testing.T) {
	const limit = 50
	const workers = 200

	g := NewGuard(map[Provider]Limit{
		ProviderLLM: {Calls: limit, Window: time.Hour},
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryReserve(ProviderLLM) {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, successes)
}

func TestIndependentProviderBuckets(t *testing.T) {
	g := NewGuard(map[Provider]Limit{
		ProviderSearch: {Calls: 1, Window: time.Hour},
		ProviderLLM:    {Calls: 1, Window: time.Hour},
	})

	assert.True(t, g.TryReserve(ProviderSearch))
	assert.False(t, g.TryReserve(ProviderSearch))
	assert.True(t, g.TryReserve(ProviderLLM))
}
