package engine

import (
	"sync"
	"time"
)

// side distinguishes the buy and sell halves of the two-phase protocol.
type side int

const (
	sideBuy side = iota
	sideSell
)

func (s side) String() string {
	if s == sideBuy {
		return "buy"
	}
	return "sell"
}

// Reservation is a pending two-phase buy or sell: funds (buy) or shares
// (sell) already carved out of the available balance, awaiting an
// explicit commit/cancel or timer expiry.
type Reservation struct {
	UserID string
	Symbol string
	Shares int64
	Price  int64 // cents per share at reservation time
	Cost   int64 // Shares × Price: reserved funds (buy) or expected proceeds (sell)

	timer *time.Timer
}

type sellAmountKey struct {
	UserID string
	Symbol string
}

// pendingTable is the transient in-memory state shared by the
// reservation and trigger engines: at most one pending buy and one
// pending sell reservation per user, plus staged sell amounts keyed by
// (user, symbol). One mutex guards all three maps and the reservation
// timers, so a timer is always cancelled before a racing commit/cancel
// reads the entry; whichever caller pops the entry first wins.
type pendingTable struct {
	mu          sync.Mutex
	buys        map[string]*Reservation
	sells       map[string]*Reservation
	sellAmounts map[sellAmountKey]int64
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		buys:        make(map[string]*Reservation),
		sells:       make(map[string]*Reservation),
		sellAmounts: make(map[sellAmountKey]int64),
	}
}

func (p *pendingTable) reservations(s side) map[string]*Reservation {
	if s == sideBuy {
		return p.buys
	}
	return p.sells
}

// put installs a reservation with its expiry timer, returning any
// reservation it replaced with that one's timer already stopped.
func (p *pendingTable) put(s side, r *Reservation, timer *time.Timer) *Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.reservations(s)
	old := m[r.UserID]
	if old != nil && old.timer != nil {
		old.timer.Stop()
	}
	r.timer = timer
	m[r.UserID] = r
	return old
}

// pop removes and returns the user's pending reservation, stopping its
// timer. Returns nil if there is none.
func (p *pendingTable) pop(s side, userID string) *Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.reservations(s)
	r := m[userID]
	if r == nil {
		return nil
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	delete(m, userID)
	return r
}

// popIf removes the user's pending reservation only if it is still the
// given one. The expiry timer uses this so that a reservation replaced
// or consumed between the timer firing and the table lock being taken
// is left alone.
func (p *pendingTable) popIf(s side, userID string, r *Reservation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.reservations(s)
	if m[userID] != r {
		return false
	}
	delete(m, userID)
	return true
}

// peek returns the user's pending reservation without consuming it.
func (p *pendingTable) peek(s side, userID string) *Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reservations(s)[userID]
}

func (p *pendingTable) putSellAmount(userID, symbol string, shares int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sellAmounts[sellAmountKey{userID, symbol}] = shares
}

func (p *pendingTable) popSellAmount(userID, symbol string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := sellAmountKey{userID, symbol}
	shares, ok := p.sellAmounts[k]
	if ok {
		delete(p.sellAmounts, k)
	}
	return shares, ok
}
