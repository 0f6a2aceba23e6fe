package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
	"github.com/janhavidudhat/CSC468-group3/internal/quote"
)

// ReservationEngine implements the two-phase reserve → commit/cancel
// protocol for BUY and SELL. A reservation moves funds or shares out of
// the available balance immediately; the final state change happens at
// commit. An unacknowledged reservation is auto-cancelled by a per-user
// timer after the configured TTL, through the same code path as an
// explicit cancel.
type ReservationEngine struct {
	ledger  ledger.Ledger
	quotes  quote.Source
	pending *pendingTable
	ttl     time.Duration
	logger  *slog.Logger
}

// NewReservationEngine creates a ReservationEngine. pending is shared
// with the TriggerEngine; both engines serialize on its mutex.
func NewReservationEngine(
	l ledger.Ledger,
	quotes quote.Source,
	pending *pendingTable,
	ttl time.Duration,
	logger *slog.Logger,
) *ReservationEngine {
	return &ReservationEngine{
		ledger:  l,
		quotes:  quotes,
		pending: pending,
		ttl:     ttl,
		logger:  logger,
	}
}

// NewPendingTable creates the shared pending-state table. Exactly one
// instance backs a worker's reservation and trigger engines.
func NewPendingTable() *pendingTable {
	return newPendingTable()
}

// Buy quotes the symbol, converts maxSpend into whole shares, and
// reserves the cost against the user's available funds. Any prior
// pending buy for the user is cancelled and refunded; only the new
// reservation is committable.
func (e *ReservationEngine) Buy(ctx context.Context, userID, symbol string, maxSpend int64) (*Reservation, error) {
	if !e.ledger.Exists(userID) {
		return nil, domain.ErrUserNotFound
	}
	q, err := e.quotes.GetQuote(ctx, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("quote %s for buy: %w", symbol, err)
	}
	if q.Price <= 0 {
		return nil, fmt.Errorf("quote %s returned non-positive price %d", symbol, q.Price)
	}

	shares := maxSpend / q.Price
	if shares == 0 {
		return nil, domain.ErrPriceExceedsBudget
	}
	cost := shares * q.Price

	_, err = e.ledger.Update(userID,
		func(a *domain.Account) error {
			if a.Available < cost {
				return domain.ErrInsufficientFunds
			}
			return nil
		},
		func(a *domain.Account) {
			a.Available -= cost
		},
	)
	if err != nil {
		return nil, err
	}

	res := &Reservation{
		UserID: userID,
		Symbol: symbol,
		Shares: shares,
		Price:  q.Price,
		Cost:   cost,
	}
	e.install(sideBuy, res)
	return res, nil
}

// CommitBuy finalizes the user's pending buy: the reserved cost leaves
// the total balance and the shares land in the holding.
func (e *ReservationEngine) CommitBuy(ctx context.Context, userID string) (*Reservation, error) {
	res := e.pending.pop(sideBuy, userID)
	if res == nil {
		return nil, domain.ErrNoPendingReservation
	}
	_, err := e.ledger.Update(userID, nil, func(a *domain.Account) {
		a.Balance -= res.Cost
		h := a.Holding(res.Symbol)
		if h == nil {
			h = &domain.Holding{}
			a.Holdings[res.Symbol] = h
		}
		h.Quantity += res.Shares
		h.Available += res.Shares
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CancelBuy drops the user's pending buy and refunds the reserved cost
// to available funds.
func (e *ReservationEngine) CancelBuy(ctx context.Context, userID string) (*Reservation, error) {
	res := e.pending.pop(sideBuy, userID)
	if res == nil {
		return nil, domain.ErrNoPendingReservation
	}
	if err := e.refund(sideBuy, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Sell converts dollarAmount into whole shares at the quoted price and
// earmarks them out of the holding's available shares. The shares stay
// owned until commit. Any prior pending sell is cancelled and refunded.
// User and holding existence are checked before the quote is fetched,
// so an unowned stock never costs a quote round trip.
func (e *ReservationEngine) Sell(ctx context.Context, userID, symbol string, dollarAmount int64) (*Reservation, error) {
	acct, err := e.ledger.Get(userID)
	if err != nil {
		return nil, err
	}
	if h := acct.Holding(symbol); h == nil || h.Quantity == 0 {
		return nil, domain.ErrStockNotOwned
	}
	q, err := e.quotes.GetQuote(ctx, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("quote %s for sell: %w", symbol, err)
	}
	if q.Price <= 0 {
		return nil, fmt.Errorf("quote %s returned non-positive price %d", symbol, q.Price)
	}

	shares := dollarAmount / q.Price
	if shares == 0 {
		return nil, domain.ErrPriceExceedsBudget
	}

	_, err = e.ledger.Update(userID,
		func(a *domain.Account) error {
			h := a.Holding(symbol)
			if h == nil || h.Quantity == 0 {
				return domain.ErrStockNotOwned
			}
			if shares > h.Available {
				return domain.ErrInsufficientShares
			}
			return nil
		},
		func(a *domain.Account) {
			a.Holding(symbol).Available -= shares
		},
	)
	if err != nil {
		return nil, err
	}

	res := &Reservation{
		UserID: userID,
		Symbol: symbol,
		Shares: shares,
		Price:  q.Price,
		Cost:   shares * q.Price,
	}
	e.install(sideSell, res)
	return res, nil
}

// CommitSell finalizes the user's pending sell: the earmarked shares
// leave the holding and the proceeds land in both balance and
// available funds.
func (e *ReservationEngine) CommitSell(ctx context.Context, userID string) (*Reservation, error) {
	res := e.pending.pop(sideSell, userID)
	if res == nil {
		return nil, domain.ErrNoPendingReservation
	}
	_, err := e.ledger.Update(userID,
		func(a *domain.Account) error {
			h := a.Holding(res.Symbol)
			if h == nil || h.Quantity < res.Shares {
				return domain.ErrConflict
			}
			return nil
		},
		func(a *domain.Account) {
			h := a.Holding(res.Symbol)
			h.Quantity -= res.Shares
			a.PruneHolding(res.Symbol)
			a.Balance += res.Cost
			a.Available += res.Cost
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CancelSell drops the user's pending sell and returns the earmarked
// shares to the holding.
func (e *ReservationEngine) CancelSell(ctx context.Context, userID string) (*Reservation, error) {
	res := e.pending.pop(sideSell, userID)
	if res == nil {
		return nil, domain.ErrNoPendingReservation
	}
	if err := e.refund(sideSell, res); err != nil {
		return nil, err
	}
	return res, nil
}

// PendingBuy returns the user's pending buy reservation, if any.
func (e *ReservationEngine) PendingBuy(userID string) *Reservation {
	return e.pending.peek(sideBuy, userID)
}

// PendingSell returns the user's pending sell reservation, if any.
func (e *ReservationEngine) PendingSell(userID string) *Reservation {
	return e.pending.peek(sideSell, userID)
}

// install arms the expiry timer and registers the reservation,
// refunding any reservation it replaced.
func (e *ReservationEngine) install(s side, res *Reservation) {
	timer := time.AfterFunc(e.ttl, func() {
		e.expire(s, res)
	})
	if old := e.pending.put(s, res, timer); old != nil {
		if err := e.refund(s, old); err != nil {
			e.logger.Error("failed to refund replaced reservation",
				slog.String("user", old.UserID),
				slog.String("side", s.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// expire runs on the timer goroutine and invokes the cancel path. If a
// racing commit or cancel already consumed the reservation, the timer
// loses the pop race and this is a no-op.
func (e *ReservationEngine) expire(s side, res *Reservation) {
	if !e.pending.popIf(s, res.UserID, res) {
		return
	}
	if err := e.refund(s, res); err != nil {
		e.logger.Error("failed to refund expired reservation",
			slog.String("user", res.UserID),
			slog.String("side", s.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Info("reservation expired",
		slog.String("user", res.UserID),
		slog.String("side", s.String()),
		slog.String("symbol", res.Symbol),
		slog.Int64("shares", res.Shares),
	)
}

// refund reverses a reservation: buy refunds reserved funds, sell
// returns earmarked shares to the holding.
func (e *ReservationEngine) refund(s side, res *Reservation) error {
	var err error
	if s == sideBuy {
		_, err = e.ledger.Update(res.UserID, nil, func(a *domain.Account) {
			a.Available += res.Cost
		})
	} else {
		_, err = e.ledger.Update(res.UserID,
			func(a *domain.Account) error {
				if a.Holding(res.Symbol) == nil {
					return domain.ErrConflict
				}
				return nil
			},
			func(a *domain.Account) {
				a.Holding(res.Symbol).Available += res.Shares
			},
		)
	}
	return err
}
