package domain

import "time"

// Holding represents a user's position in a single stock symbol.
// Available tracks shares not earmarked by a pending sell or an armed
// auto-sell trigger.
type Holding struct {
	Quantity  int64
	Available int64
}

// AutoTrigger is a standing auto-buy or auto-sell order on one symbol.
// A trigger with TriggerPrice == 0 has an amount staged but is not yet
// armed, and is invisible to the polling loop.
type AutoTrigger struct {
	Symbol       string
	Quantity     int64
	TriggerPrice int64 // cents; 0 means not armed
}

// Armed reports whether the trigger is eligible for polling.
func (t *AutoTrigger) Armed() bool {
	return t.TriggerPrice > 0
}

// Account is the per-user ledger document. It is owned exclusively by
// the ledger; every mutation goes through one conditional update keyed
// by user id. Version is bumped by the ledger on every successful
// update and is the optimistic-concurrency token.
type Account struct {
	UserID       string
	Balance      int64 // total funds in cents
	Available    int64 // unreserved funds in cents
	Holdings     map[string]*Holding
	BuyTriggers  map[string]*AutoTrigger
	SellTriggers map[string]*AutoTrigger
	CreatedAt    time.Time
	Version      int64
}

// NewAccount creates an empty account for the given user.
func NewAccount(userID string) *Account {
	return &Account{
		UserID:       userID,
		Holdings:     make(map[string]*Holding),
		BuyTriggers:  make(map[string]*AutoTrigger),
		SellTriggers: make(map[string]*AutoTrigger),
		CreatedAt:    time.Now(),
	}
}

// Clone returns a deep copy. The ledger hands out clones so callers can
// never mutate the stored document outside a conditional update.
func (a *Account) Clone() *Account {
	c := &Account{
		UserID:       a.UserID,
		Balance:      a.Balance,
		Available:    a.Available,
		Holdings:     make(map[string]*Holding, len(a.Holdings)),
		BuyTriggers:  make(map[string]*AutoTrigger, len(a.BuyTriggers)),
		SellTriggers: make(map[string]*AutoTrigger, len(a.SellTriggers)),
		CreatedAt:    a.CreatedAt,
		Version:      a.Version,
	}
	for sym, h := range a.Holdings {
		hc := *h
		c.Holdings[sym] = &hc
	}
	for sym, t := range a.BuyTriggers {
		tc := *t
		c.BuyTriggers[sym] = &tc
	}
	for sym, t := range a.SellTriggers {
		tc := *t
		c.SellTriggers[sym] = &tc
	}
	return c
}

// Holding returns the holding for symbol, or nil.
func (a *Account) Holding(symbol string) *Holding {
	return a.Holdings[symbol]
}

// PruneHolding removes the holding for symbol if it has reached zero
// owned shares with nothing earmarked.
func (a *Account) PruneHolding(symbol string) {
	if h, ok := a.Holdings[symbol]; ok && h.Quantity == 0 && h.Available == 0 {
		delete(a.Holdings, symbol)
	}
}

// CheckInvariants verifies the balance invariants that must hold before
// and after every operation: available funds never exceed total funds,
// and per holding 0 <= available <= quantity.
func (a *Account) CheckInvariants() error {
	if a.Available < 0 || a.Available > a.Balance {
		return &InvariantError{UserID: a.UserID, Detail: "available funds out of range"}
	}
	for sym, h := range a.Holdings {
		if h.Available < 0 || h.Available > h.Quantity {
			return &InvariantError{UserID: a.UserID, Symbol: sym, Detail: "available shares out of range"}
		}
	}
	return nil
}
