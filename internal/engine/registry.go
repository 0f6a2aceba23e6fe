package engine

import "sync"

// Direction distinguishes buy-armed from sell-armed trigger entries.
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
)

func (d Direction) String() string {
	if d == DirectionBuy {
		return "buy"
	}
	return "sell"
}

// Entry is one armed (user, symbol, direction) the polling loop must
// re-quote each cycle.
type Entry struct {
	UserID    string
	Symbol    string
	Direction Direction
}

// Registry is the set of armed triggers. The trigger engine adds on
// arming and removes on cancellation; the polling loop removes on
// firing. An entry removed by a racing cancellation mid-cycle is a
// silent no-op for the loop.
type Registry struct {
	mu      sync.Mutex
	entries map[Entry]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Entry]struct{}),
	}
}

// Add registers an armed trigger.
func (r *Registry) Add(userID, symbol string, dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[Entry{userID, symbol, dir}] = struct{}{}
}

// Remove deregisters a trigger. Removing an absent entry is a no-op.
func (r *Registry) Remove(userID, symbol string, dir Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, Entry{userID, symbol, dir})
}

// Snapshot returns the current entries. The polling loop iterates the
// snapshot without holding the lock, so quote fetches never block
// arming or cancellation.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of armed entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
