// Package dispatch routes parsed trading commands to the engines and
// renders exactly one textual response per input line, success or
// failure, always echoing the transaction sequence number.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/janhavidudhat/CSC468-group3/internal/audit"
	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	"github.com/janhavidudhat/CSC468-group3/internal/engine"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
	"github.com/janhavidudhat/CSC468-group3/internal/quote"
)

// Dispatcher executes commands against the engines. One dispatcher
// processes its worker's commands strictly in arrival order; the only
// concurrent actors are the reservation timers and the polling loop,
// which serialize on the engines' shared pending table.
type Dispatcher struct {
	ledger       ledger.Ledger
	quotes       quote.Source
	reservations *engine.ReservationEngine
	triggers     *engine.TriggerEngine
	audit        *audit.Log
	logger       *slog.Logger
}

// New creates a Dispatcher.
func New(
	l ledger.Ledger,
	quotes quote.Source,
	reservations *engine.ReservationEngine,
	triggers *engine.TriggerEngine,
	auditLog *audit.Log,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		ledger:       l,
		quotes:       quotes,
		reservations: reservations,
		triggers:     triggers,
		audit:        auditLog,
		logger:       logger,
	}
}

// Handle processes one raw command line and returns the single response
// for it. Handler faults, including panics, are converted into an error
// response carrying the transaction number, command, and parameters.
func (d *Dispatcher) Handle(ctx context.Context, line string) string {
	req, err := domain.ParseLine(line)
	if err != nil {
		d.logger.Warn("unparseable command line", slog.String("line", line), slog.String("error", err.Error()))
		return fmt.Sprintf("[0] error: %v", err)
	}

	var resp string
	func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("handler fault",
					slog.Int64("seq", req.Seq),
					slog.String("command", string(req.Cmd)),
					slog.String("params", req.ParamString()),
					slog.Any("panic", r),
				)
				d.audit.Append(req.Seq, req.UserID(), string(req.Cmd), req.ParamString(), "handler_fault")
				resp = errorResponse(req, fmt.Errorf("internal handler fault"))
			}
		}()

		msg, err := d.execute(ctx, req)
		outcome := "ok"
		if err != nil {
			outcome = err.Error()
			d.logger.Info("command failed",
				slog.Int64("seq", req.Seq),
				slog.String("command", string(req.Cmd)),
				slog.String("params", req.ParamString()),
				slog.String("error", err.Error()),
			)
			resp = errorResponse(req, err)
		} else {
			resp = fmt.Sprintf("[%d] %s: %s", req.Seq, req.Cmd, msg)
		}
		d.audit.Append(req.Seq, auditUser(req), string(req.Cmd), req.ParamString(), outcome)
	}()
	return resp
}

func errorResponse(req *domain.Request, err error) string {
	return fmt.Sprintf("[%d] %s error: %v (params: %s)", req.Seq, req.Cmd, err, req.ParamString())
}

// auditUser extracts the user id for the audit entry. A full-log
// DUMPLOG carries only a filename.
func auditUser(req *domain.Request) string {
	if req.Cmd == domain.CmdDumplog && len(req.Params) == 1 {
		return ""
	}
	return req.UserID()
}

// execute runs the handler for the command. The command set is closed;
// anything else lands in the unknown-command branch.
func (d *Dispatcher) execute(ctx context.Context, req *domain.Request) (string, error) {
	switch req.Cmd {
	case domain.CmdAdd:
		return d.add(req)
	case domain.CmdQuote:
		return d.quote(ctx, req)
	case domain.CmdBuy:
		return d.buy(ctx, req)
	case domain.CmdCommitBuy:
		return d.commitBuy(ctx, req)
	case domain.CmdCancelBuy:
		return d.cancelBuy(ctx, req)
	case domain.CmdSell:
		return d.sell(ctx, req)
	case domain.CmdCommitSell:
		return d.commitSell(ctx, req)
	case domain.CmdCancelSell:
		return d.cancelSell(ctx, req)
	case domain.CmdSetBuyAmount:
		return d.setBuyAmount(req)
	case domain.CmdSetBuyTrigger:
		return d.setBuyTrigger(req)
	case domain.CmdCancelSetBuy:
		return d.cancelSetBuy(req)
	case domain.CmdSetSellAmount:
		return d.setSellAmount(req)
	case domain.CmdSetSellTrigger:
		return d.setSellTrigger(req)
	case domain.CmdCancelSetSell:
		return d.cancelSetSell(req)
	case domain.CmdDumplog:
		return d.dumplog(req)
	case domain.CmdDisplaySummary:
		return d.displaySummary(req)
	default:
		return "", domain.ErrUnknownCommand
	}
}

func wantParams(req *domain.Request, n int) error {
	if len(req.Params) != n {
		return &domain.ValidationError{
			Message: fmt.Sprintf("%s takes %d parameters, got %d", req.Cmd, n, len(req.Params)),
		}
	}
	return nil
}

func parseShares(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, &domain.ValidationError{Message: fmt.Sprintf("share amount must be a positive integer, got %q", s)}
	}
	return n, nil
}

func (d *Dispatcher) add(req *domain.Request) (string, error) {
	if err := wantParams(req, 2); err != nil {
		return "", err
	}
	cents, err := domain.ParseCents(req.Params[1])
	if err != nil {
		return "", &domain.ValidationError{Message: err.Error()}
	}
	userID := req.UserID()

	if !d.ledger.Exists(userID) {
		if err := d.ledger.Create(domain.NewAccount(userID)); err != nil && !errors.Is(err, domain.ErrUserExists) {
			return "", err
		}
	}
	a, err := d.ledger.Update(userID, nil, func(a *domain.Account) {
		a.Balance += cents
		a.Available += cents
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("added %s, balance %s", domain.FormatCents(cents), domain.FormatCents(a.Balance)), nil
}

func (d *Dispatcher) quote(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 2); err != nil {
		return "", err
	}
	q, err := d.quotes.GetQuote(ctx, req.Params[0], req.Params[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", q.Symbol, domain.FormatCents(q.Price)), nil
}

func (d *Dispatcher) buy(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 3); err != nil {
		return "", err
	}
	maxSpend, err := domain.ParseCents(req.Params[2])
	if err != nil {
		return "", &domain.ValidationError{Message: err.Error()}
	}
	res, err := d.reservations.Buy(ctx, req.Params[0], req.Params[1], maxSpend)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reserved %d %s @ %s for %s, confirm with COMMIT_BUY or CANCEL_BUY",
		res.Shares, res.Symbol, domain.FormatCents(res.Price), domain.FormatCents(res.Cost)), nil
}

func (d *Dispatcher) commitBuy(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 1); err != nil {
		return "", err
	}
	res, err := d.reservations.CommitBuy(ctx, req.Params[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("bought %d %s @ %s for %s",
		res.Shares, res.Symbol, domain.FormatCents(res.Price), domain.FormatCents(res.Cost)), nil
}

func (d *Dispatcher) cancelBuy(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 1); err != nil {
		return "", err
	}
	res, err := d.reservations.CancelBuy(ctx, req.Params[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("released %s reserved for %d %s",
		domain.FormatCents(res.Cost), res.Shares, res.Symbol), nil
}

func (d *Dispatcher) sell(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 3); err != nil {
		return "", err
	}
	amount, err := domain.ParseCents(req.Params[2])
	if err != nil {
		return "", &domain.ValidationError{Message: err.Error()}
	}
	res, err := d.reservations.Sell(ctx, req.Params[0], req.Params[1], amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reserved %d %s @ %s for %s, confirm with COMMIT_SELL or CANCEL_SELL",
		res.Shares, res.Symbol, domain.FormatCents(res.Price), domain.FormatCents(res.Cost)), nil
}

func (d *Dispatcher) commitSell(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 1); err != nil {
		return "", err
	}
	res, err := d.reservations.CommitSell(ctx, req.Params[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sold %d %s @ %s for %s",
		res.Shares, res.Symbol, domain.FormatCents(res.Price), domain.FormatCents(res.Cost)), nil
}

func (d *Dispatcher) cancelSell(ctx context.Context, req *domain.Request) (string, error) {
	if err := wantParams(req, 1); err != nil {
		return "", err
	}
	res, err := d.reservations.CancelSell(ctx, req.Params[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("returned %d %s to holding", res.Shares, res.Symbol), nil
}

func (d *Dispatcher) setBuyAmount(req *domain.Request) (string, error) {
	if err := wantParams(req, 3); err != nil {
		return "", err
	}
	shares, err := parseShares(req.Params[2])
	if err != nil {
		return "", err
	}
	if err := d.triggers.SetBuyAmount(req.Params[0], req.Params[1], shares); err != nil {
		return "", err
	}
	return fmt.Sprintf("staged auto-buy of %d %s, set a trigger with SET_BUY_TRIGGER", shares, req.Params[1]), nil
}

func (d *Dispatcher) setBuyTrigger(req *domain.Request) (string, error) {
	if err := wantParams(req, 3); err != nil {
		return "", err
	}
	price, err := domain.ParseCents(req.Params[2])
	if err != nil {
		return "", &domain.ValidationError{Message: err.Error()}
	}
	t, err := d.triggers.SetBuyTrigger(req.Params[0], req.Params[1], price)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("armed auto-buy of %d %s at %s, reserved %s",
		t.Quantity, t.Symbol, domain.FormatCents(t.TriggerPrice),
		domain.FormatCents(t.Quantity*t.TriggerPrice)), nil
}

func (d *Dispatcher) cancelSetBuy(req *domain.Request) (string, error) {
	if err := wantParams(req, 2); err != nil {
		return "", err
	}
	t, err := d.triggers.CancelSetBuy(req.Params[0], req.Params[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("cancelled auto-buy of %d %s", t.Quantity, t.Symbol), nil
}

func (d *Dispatcher) setSellAmount(req *domain.Request) (string, error) {
	if err := wantParams(req, 3); err != nil {
		return "", err
	}
	shares, err := parseShares(req.Params[2])
	if err != nil {
		return "", err
	}
	if err := d.triggers.SetSellAmount(req.Params[0], req.Params[1], shares); err != nil {
		return "", err
	}
	return fmt.Sprintf("earmarked %d %s for auto-sell, set a trigger with SET_SELL_TRIGGER", shares, req.Params[1]), nil
}

func (d *Dispatcher) setSellTrigger(req *domain.Request) (string, error) {
	if err := wantParams(req, 3); err != nil {
		return "", err
	}
	price, err := domain.ParseCents(req.Params[2])
	if err != nil {
		return "", &domain.ValidationError{Message: err.Error()}
	}
	t, err := d.triggers.SetSellTrigger(req.Params[0], req.Params[1], price)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("armed auto-sell of %d %s at %s",
		t.Quantity, t.Symbol, domain.FormatCents(t.TriggerPrice)), nil
}

func (d *Dispatcher) cancelSetSell(req *domain.Request) (string, error) {
	if err := wantParams(req, 2); err != nil {
		return "", err
	}
	if err := d.triggers.CancelSetSell(req.Params[0], req.Params[1]); err != nil {
		return "", err
	}
	return fmt.Sprintf("cancelled auto-sell on %s", req.Params[1]), nil
}

// dumplog takes either (filename) for the full log or (user, filename).
func (d *Dispatcher) dumplog(req *domain.Request) (string, error) {
	var userID, filename string
	switch len(req.Params) {
	case 1:
		filename = req.Params[0]
	case 2:
		userID = req.Params[0]
		filename = req.Params[1]
	default:
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("DUMPLOG takes 1 or 2 parameters, got %d", len(req.Params)),
		}
	}
	if err := d.audit.Dump(filename, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote audit log to %s", filename), nil
}

func (d *Dispatcher) displaySummary(req *domain.Request) (string, error) {
	if err := wantParams(req, 1); err != nil {
		return "", err
	}
	userID := req.Params[0]
	a, err := d.ledger.Get(userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "account %s: balance %s, available %s",
		userID, domain.FormatCents(a.Balance), domain.FormatCents(a.Available))
	for sym, h := range a.Holdings {
		fmt.Fprintf(&b, "; holds %d %s (%d available)", h.Quantity, sym, h.Available)
	}
	if res := d.reservations.PendingBuy(userID); res != nil {
		fmt.Fprintf(&b, "; pending buy %d %s for %s", res.Shares, res.Symbol, domain.FormatCents(res.Cost))
	}
	if res := d.reservations.PendingSell(userID); res != nil {
		fmt.Fprintf(&b, "; pending sell %d %s for %s", res.Shares, res.Symbol, domain.FormatCents(res.Cost))
	}
	for sym, t := range a.BuyTriggers {
		if t.Armed() {
			fmt.Fprintf(&b, "; auto-buy %d %s at %s", t.Quantity, sym, domain.FormatCents(t.TriggerPrice))
		} else {
			fmt.Fprintf(&b, "; auto-buy %d %s (no trigger)", t.Quantity, sym)
		}
	}
	for sym, t := range a.SellTriggers {
		fmt.Fprintf(&b, "; auto-sell %d %s at %s", t.Quantity, sym, domain.FormatCents(t.TriggerPrice))
	}
	return b.String(), nil
}
