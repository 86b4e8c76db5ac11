package quota

import (
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned by callers that treat a denied reservation as an
// error rather than a degradation.
var ErrExhausted = errors.New("quota exhausted for current window")

// Provider names the independent quota buckets tracked by the guard.
type Provider string

const (
	ProviderSearch Provider = "search"
	ProviderLLM    Provider = "llm"
)

// Limit configures one provider's call budget.
type Limit struct {
	Calls  int
	Window time.Duration
}

type state struct {
	windowStart time.Time
	used        int
}

// Guard tracks per-provider call budgets over rolling windows. Reservation is
// an atomic check-then-increment; a denied reservation never mutates state.
type Guard struct {
	mu     sync.Mutex
	limits map[Provider]Limit
	states map[Provider]*state
	now    func() time.Time
}

// NewGuard creates a guard enforcing the given per-provider limits. Providers
// without a limit are always permitted.
func NewGuard(limits map[Provider]Limit) *Guard {
	g := &Guard{
		limits: make(map[Provider]Limit, len(limits)),
		states: make(map[Provider]*state, len(limits)),
		now:    time.Now,
	}
	for p, l := range limits {
		g.limits[p] = l
	}
	return g
}

// TryReserve consumes one call from the provider's window if any budget
// remains. Window rollover is lazy: it is checked on every reservation.
func (g *Guard) TryReserve(provider Provider) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	limit, ok := g.limits[provider]
	if !ok || limit.Calls <= 0 {
		return true
	}

	st, ok := g.states[provider]
	if !ok {
		st = &state{windowStart: g.now()}
		g.states[provider] = st
	}

	now := g.now()
	if limit.Window > 0 && now.Sub(st.windowStart) >= limit.Window {
		st.windowStart = now
		st.used = 0
	}

	if st.used >= limit.Calls {
		return false
	}
	st.used++
	return true
}

// Remaining reports the unused budget for the provider's current window.
// Providers without a configured limit report -1.
func (g *Guard) Remaining(provider Provider) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	limit, ok := g.limits[provider]
	if !ok || limit.Calls <= 0 {
		return -1
	}
	st, ok := g.states[provider]
	if !ok {
		return limit.Calls
	}
	if limit.Window > 0 && g.now().Sub(st.windowStart) >= limit.Window {
		return limit.Calls
	}
	return limit.Calls - st.used
}
