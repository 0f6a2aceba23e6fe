package engine

import (
	"log/slog"
	"math"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
)

// TriggerEngine implements the three-step amount → trigger → active
// protocol for auto-buy and auto-sell. Amount and trigger price arrive
// in separate commands, so the intermediate state (amount staged,
// trigger unset) is kept invisible to the polling loop: the loop only
// sees registry entries, which are added at arming time.
type TriggerEngine struct {
	ledger   ledger.Ledger
	pending  *pendingTable
	registry *Registry
	logger   *slog.Logger
}

// NewTriggerEngine creates a TriggerEngine sharing the pending table
// with the reservation engine and publishing armed pairs to registry.
func NewTriggerEngine(l ledger.Ledger, pending *pendingTable, registry *Registry, logger *slog.Logger) *TriggerEngine {
	return &TriggerEngine{
		ledger:   l,
		pending:  pending,
		registry: registry,
		logger:   logger,
	}
}

// SetBuyAmount stages the share amount for an auto-buy on symbol. No
// funds are reserved yet; that happens when the trigger price arrives.
// An armed auto-buy must be cancelled explicitly before the amount can
// be restaged, otherwise its reserved funds would leak.
func (e *TriggerEngine) SetBuyAmount(userID, symbol string, shares int64) error {
	if shares <= 0 {
		return &domain.ValidationError{Message: "auto-buy amount must be a positive share count"}
	}
	_, err := e.ledger.Update(userID,
		func(a *domain.Account) error {
			if t := a.BuyTriggers[symbol]; t != nil && t.Armed() {
				return domain.ErrBuyTriggerActive
			}
			return nil
		},
		func(a *domain.Account) {
			a.BuyTriggers[symbol] = &domain.AutoTrigger{Symbol: symbol, Quantity: shares}
		},
	)
	return err
}

// SetBuyTrigger arms the staged auto-buy: reserves amount × price out
// of available funds and registers the pair with the polling loop.
func (e *TriggerEngine) SetBuyTrigger(userID, symbol string, price int64) (*domain.AutoTrigger, error) {
	if price <= 0 {
		return nil, &domain.ValidationError{Message: "trigger price must be positive"}
	}
	var armed domain.AutoTrigger
	_, err := e.ledger.Update(userID,
		func(a *domain.Account) error {
			t := a.BuyTriggers[symbol]
			if t == nil {
				return domain.ErrNoBuyAmountSet
			}
			if t.Armed() {
				return domain.ErrBuyTriggerActive
			}
			// Quantity * price must not wrap; a product that would is
			// unaffordable on any account.
			if t.Quantity > math.MaxInt64/price {
				return domain.ErrInsufficientFunds
			}
			if t.Quantity*price > a.Available {
				return domain.ErrInsufficientFunds
			}
			return nil
		},
		func(a *domain.Account) {
			t := a.BuyTriggers[symbol]
			a.Available -= t.Quantity * price
			t.TriggerPrice = price
			armed = *t
		},
	)
	if err != nil {
		return nil, err
	}
	e.registry.Add(userID, symbol, DirectionBuy)
	return &armed, nil
}

// CancelSetBuy removes the auto-buy for symbol at either stage,
// refunding reserved funds if it was armed.
func (e *TriggerEngine) CancelSetBuy(userID, symbol string) (*domain.AutoTrigger, error) {
	var removed domain.AutoTrigger
	_, err := e.ledger.Update(userID,
		func(a *domain.Account) error {
			if a.BuyTriggers[symbol] == nil {
				return domain.ErrNoBuyAmountSet
			}
			return nil
		},
		func(a *domain.Account) {
			t := a.BuyTriggers[symbol]
			a.Available += t.Quantity * t.TriggerPrice
			removed = *t
			delete(a.BuyTriggers, symbol)
		},
	)
	if err != nil {
		return nil, err
	}
	e.registry.Remove(userID, symbol, DirectionBuy)
	return &removed, nil
}

// SetSellAmount earmarks shares out of the holding's available shares
// and stages them for an auto-sell. No AutoTrigger exists yet; the
// staged amount lives in the pending table until the trigger price
// arrives. Restaging replaces (and refunds) a previously staged amount,
// and restaging over an armed auto-sell disarms it, netting the
// holding-available adjustment so exactly the new amount stays
// earmarked.
func (e *TriggerEngine) SetSellAmount(userID, symbol string, shares int64) error {
	if shares <= 0 {
		return &domain.ValidationError{Message: "auto-sell amount must be a positive share count"}
	}

	if old, ok := e.pending.popSellAmount(userID, symbol); ok {
		_, err := e.ledger.Update(userID,
			func(a *domain.Account) error {
				if a.Holding(symbol) == nil {
					return domain.ErrConflict
				}
				return nil
			},
			func(a *domain.Account) {
				a.Holding(symbol).Available += old
			},
		)
		if err != nil {
			return err
		}
	}

	_, err := e.ledger.Update(userID,
		func(a *domain.Account) error {
			h := a.Holding(symbol)
			if h == nil || h.Quantity == 0 {
				return domain.ErrStockNotOwned
			}
			// An armed auto-sell's earmark is reclaimed by the
			// overwrite, so it counts as available here.
			avail := h.Available
			if t := a.SellTriggers[symbol]; t != nil {
				avail += t.Quantity
			}
			if shares > avail {
				return domain.ErrInsufficientShares
			}
			return nil
		},
		func(a *domain.Account) {
			h := a.Holding(symbol)
			if t := a.SellTriggers[symbol]; t != nil {
				h.Available += t.Quantity
				delete(a.SellTriggers, symbol)
			}
			h.Available -= shares
		},
	)
	if err != nil {
		return err
	}
	e.registry.Remove(userID, symbol, DirectionSell)
	e.pending.putSellAmount(userID, symbol, shares)
	return nil
}

// SetSellTrigger consumes the staged sell amount and arms the
// auto-sell. Any previously armed auto-sell was already disarmed when
// the amount was restaged, so the staged shares are the only earmark.
func (e *TriggerEngine) SetSellTrigger(userID, symbol string, price int64) (*domain.AutoTrigger, error) {
	if price <= 0 {
		return nil, &domain.ValidationError{Message: "trigger price must be positive"}
	}
	shares, ok := e.pending.popSellAmount(userID, symbol)
	if !ok {
		return nil, domain.ErrNoSellAmountSet
	}

	var armed domain.AutoTrigger
	_, err := e.ledger.Update(userID, nil, func(a *domain.Account) {
		t := &domain.AutoTrigger{Symbol: symbol, Quantity: shares, TriggerPrice: price}
		a.SellTriggers[symbol] = t
		armed = *t
	})
	if err != nil {
		// The earmark still stands; restage so the user can retry or
		// cancel explicitly.
		e.pending.putSellAmount(userID, symbol, shares)
		return nil, err
	}
	e.registry.Add(userID, symbol, DirectionSell)
	return &armed, nil
}

// CancelSetSell cancels an auto-sell at either stage: a staged amount
// is consumed and its shares refunded, otherwise an existing
// AutoTrigger is removed and its shares refunded.
func (e *TriggerEngine) CancelSetSell(userID, symbol string) error {
	if shares, ok := e.pending.popSellAmount(userID, symbol); ok {
		_, err := e.ledger.Update(userID,
			func(a *domain.Account) error {
				if a.Holding(symbol) == nil {
					return domain.ErrConflict
				}
				return nil
			},
			func(a *domain.Account) {
				a.Holding(symbol).Available += shares
			},
		)
		if err != nil {
			return err
		}
		e.registry.Remove(userID, symbol, DirectionSell)
		return nil
	}

	_, err := e.ledger.Update(userID,
		func(a *domain.Account) error {
			if a.SellTriggers[symbol] == nil {
				return domain.ErrNoAutoSellSet
			}
			return nil
		},
		func(a *domain.Account) {
			t := a.SellTriggers[symbol]
			if h := a.Holding(symbol); h != nil {
				h.Available += t.Quantity
			}
			delete(a.SellTriggers, symbol)
		},
	)
	if err != nil {
		return err
	}
	e.registry.Remove(userID, symbol, DirectionSell)
	return nil
}
