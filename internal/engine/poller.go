package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
	"github.com/janhavidudhat/CSC468-group3/internal/quote"
)

// Internal outcomes of a fire attempt. Neither reaches a user.
var (
	errTriggerGone = errors.New("trigger gone")
	errNotCrossed  = errors.New("price has not crossed trigger")
)

// Poller is the background loop that re-quotes every armed
// (user, symbol) at a fixed interval and fires auto-orders when the
// price crosses the trigger. A fired order is reserved and committed
// within the same cycle; the reservation timeout never applies to it.
type Poller struct {
	interval time.Duration
	registry *Registry
	ledger   ledger.Ledger
	quotes   quote.Source
	logger   *slog.Logger
}

// NewPoller creates a Poller over the given registry.
func NewPoller(
	interval time.Duration,
	registry *Registry,
	l ledger.Ledger,
	quotes quote.Source,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		interval: interval,
		registry: registry,
		ledger:   l,
		quotes:   quotes,
		logger:   logger,
	}
}

// Start launches the polling goroutine. It stops when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Tick runs one polling cycle over a snapshot of the armed entries.
// Entries removed by a racing cancellation between the snapshot and the
// fire attempt are silent no-ops.
func (p *Poller) Tick(ctx context.Context) {
	for _, entry := range p.registry.Snapshot() {
		q, err := p.quotes.GetQuote(ctx, entry.UserID, entry.Symbol)
		if err != nil {
			p.logger.Warn("poll quote failed",
				slog.String("user", entry.UserID),
				slog.String("symbol", entry.Symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		if q.Price <= 0 {
			continue
		}
		p.fire(entry, q.Price)
	}
}

// fire attempts to execute one armed trigger at the given price. The
// crossing check runs inside the conditional update so it always sees
// the current trigger, not the one from the snapshot.
func (p *Poller) fire(entry Entry, price int64) {
	var fired domain.AutoTrigger
	var err error
	if entry.Direction == DirectionBuy {
		_, err = p.ledger.Update(entry.UserID,
			func(a *domain.Account) error {
				t := a.BuyTriggers[entry.Symbol]
				if t == nil || !t.Armed() {
					return errTriggerGone
				}
				if price > t.TriggerPrice {
					return errNotCrossed
				}
				return nil
			},
			func(a *domain.Account) {
				t := a.BuyTriggers[entry.Symbol]
				reserved := t.Quantity * t.TriggerPrice
				cost := t.Quantity * price
				a.Balance -= cost
				a.Available += reserved - cost
				h := a.Holding(entry.Symbol)
				if h == nil {
					h = &domain.Holding{}
					a.Holdings[entry.Symbol] = h
				}
				h.Quantity += t.Quantity
				h.Available += t.Quantity
				fired = *t
				delete(a.BuyTriggers, entry.Symbol)
			},
		)
	} else {
		_, err = p.ledger.Update(entry.UserID,
			func(a *domain.Account) error {
				t := a.SellTriggers[entry.Symbol]
				if t == nil || !t.Armed() {
					return errTriggerGone
				}
				if price < t.TriggerPrice {
					return errNotCrossed
				}
				h := a.Holding(entry.Symbol)
				if h == nil || h.Quantity < t.Quantity {
					return errTriggerGone
				}
				return nil
			},
			func(a *domain.Account) {
				t := a.SellTriggers[entry.Symbol]
				proceeds := t.Quantity * price
				h := a.Holding(entry.Symbol)
				h.Quantity -= t.Quantity
				a.Balance += proceeds
				a.Available += proceeds
				fired = *t
				delete(a.SellTriggers, entry.Symbol)
				a.PruneHolding(entry.Symbol)
			},
		)
	}

	switch {
	case err == nil:
		p.registry.Remove(entry.UserID, entry.Symbol, entry.Direction)
		p.logger.Info("auto trigger fired",
			slog.String("user", entry.UserID),
			slog.String("symbol", entry.Symbol),
			slog.String("direction", entry.Direction.String()),
			slog.Int64("shares", fired.Quantity),
			slog.Int64("trigger_cents", fired.TriggerPrice),
			slog.Int64("price_cents", price),
		)
	case errors.Is(err, errNotCrossed):
		// Stays armed for the next cycle.
	case errors.Is(err, errTriggerGone), errors.Is(err, domain.ErrUserNotFound):
		// Cancelled or consumed by a racing command.
		p.registry.Remove(entry.UserID, entry.Symbol, entry.Direction)
	default:
		p.logger.Warn("auto trigger fire failed",
			slog.String("user", entry.UserID),
			slog.String("symbol", entry.Symbol),
			slog.String("direction", entry.Direction.String()),
			slog.String("error", err.Error()),
		)
	}
}
