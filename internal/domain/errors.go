package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling. The dispatch layer
// maps these to response text; none are auto-retried.
var (
	ErrUserExists           = errors.New("user_exists")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrStockNotOwned        = errors.New("stock_not_owned")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientShares   = errors.New("insufficient_shares")
	ErrPriceExceedsBudget   = errors.New("price_exceeds_budget")
	ErrNoPendingReservation = errors.New("no_pending_reservation")
	ErrNoBuyAmountSet       = errors.New("no_buy_amount_set")
	ErrNoSellAmountSet      = errors.New("no_sell_amount_set")
	ErrNoAutoSellSet        = errors.New("no_auto_sell_set")
	ErrBuyTriggerActive     = errors.New("buy_trigger_active")
	ErrConflict             = errors.New("conflict")
	ErrUnknownCommand       = errors.New("unknown_command")
)

// ValidationError represents a command parameter validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvariantError reports a violated balance invariant. Surfacing one
// means a bug in the reservation bookkeeping, not bad user input.
type InvariantError struct {
	UserID string
	Symbol string
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("invariant violated for user %s symbol %s: %s", e.UserID, e.Symbol, e.Detail)
	}
	return fmt.Sprintf("invariant violated for user %s: %s", e.UserID, e.Detail)
}
