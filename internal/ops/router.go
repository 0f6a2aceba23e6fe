// Package ops exposes a small read-only HTTP surface for inspecting a
// running worker: health, account summaries, armed triggers, and the
// audit trail. All trading traffic goes over Kafka; nothing here
// mutates state.
package ops

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/janhavidudhat/CSC468-group3/internal/audit"
	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	"github.com/janhavidudhat/CSC468-group3/internal/engine"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
)

// NewRouter creates a chi router with all routes registered and request
// logging middleware.
func NewRouter(
	l ledger.Ledger,
	reservations *engine.ReservationEngine,
	registry *engine.Registry,
	auditLog *audit.Log,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	h := &opsHandler{ledger: l, reservations: reservations, registry: registry, audit: auditLog}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/accounts/{user_id}/summary", h.getSummary)
	r.Get("/accounts/{user_id}/events", h.getEvents)
	r.Get("/triggers", h.getTriggers)

	return r
}

type opsHandler struct {
	ledger       ledger.Ledger
	reservations *engine.ReservationEngine
	registry     *engine.Registry
	audit        *audit.Log
}

type holdingSummary struct {
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Available int64  `json:"available"`
}

type reservationSummary struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
	Price  string `json:"price"`
	Cost   string `json:"cost"`
}

type triggerSummary struct {
	Symbol       string `json:"symbol"`
	Quantity     int64  `json:"quantity"`
	TriggerPrice string `json:"trigger_price,omitempty"`
	Armed        bool   `json:"armed"`
}

type accountSummary struct {
	UserID       string              `json:"user_id"`
	Balance      string              `json:"balance"`
	Available    string              `json:"available"`
	Holdings     []holdingSummary    `json:"holdings"`
	PendingBuy   *reservationSummary `json:"pending_buy,omitempty"`
	PendingSell  *reservationSummary `json:"pending_sell,omitempty"`
	BuyTriggers  []triggerSummary    `json:"buy_triggers"`
	SellTriggers []triggerSummary    `json:"sell_triggers"`
}

func (h *opsHandler) getSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	a, err := h.ledger.Get(userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			WriteError(w, http.StatusNotFound, "user_not_found", "no such account: "+userID)
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	out := accountSummary{
		UserID:       a.UserID,
		Balance:      domain.FormatCents(a.Balance),
		Available:    domain.FormatCents(a.Available),
		Holdings:     []holdingSummary{},
		BuyTriggers:  []triggerSummary{},
		SellTriggers: []triggerSummary{},
	}
	for sym, hd := range a.Holdings {
		out.Holdings = append(out.Holdings, holdingSummary{
			Symbol:    sym,
			Quantity:  hd.Quantity,
			Available: hd.Available,
		})
	}
	if res := h.reservations.PendingBuy(userID); res != nil {
		out.PendingBuy = &reservationSummary{
			Symbol: res.Symbol,
			Shares: res.Shares,
			Price:  domain.FormatCents(res.Price),
			Cost:   domain.FormatCents(res.Cost),
		}
	}
	if res := h.reservations.PendingSell(userID); res != nil {
		out.PendingSell = &reservationSummary{
			Symbol: res.Symbol,
			Shares: res.Shares,
			Price:  domain.FormatCents(res.Price),
			Cost:   domain.FormatCents(res.Cost),
		}
	}
	for sym, t := range a.BuyTriggers {
		s := triggerSummary{Symbol: sym, Quantity: t.Quantity, Armed: t.Armed()}
		if t.Armed() {
			s.TriggerPrice = domain.FormatCents(t.TriggerPrice)
		}
		out.BuyTriggers = append(out.BuyTriggers, s)
	}
	for sym, t := range a.SellTriggers {
		out.SellTriggers = append(out.SellTriggers, triggerSummary{
			Symbol:       sym,
			Quantity:     t.Quantity,
			TriggerPrice: domain.FormatCents(t.TriggerPrice),
			Armed:        true,
		})
	}

	WriteJSON(w, http.StatusOK, out)
}

type eventOut struct {
	ID             string `json:"id"`
	TransactionNum int64  `json:"transaction_num"`
	Command        string `json:"command"`
	Params         string `json:"params"`
	Outcome        string `json:"outcome"`
	Timestamp      int64  `json:"timestamp"`
}

func (h *opsHandler) getEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	events := h.audit.Events(userID)
	out := make([]eventOut, 0, len(events))
	for _, e := range events {
		out = append(out, eventOut{
			ID:             e.ID,
			TransactionNum: e.Seq,
			Command:        e.Command,
			Params:         e.Params,
			Outcome:        e.Outcome,
			Timestamp:      e.When.UnixMilli(),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

type registryEntry struct {
	UserID    string `json:"user_id"`
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"`
}

func (h *opsHandler) getTriggers(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.Snapshot()
	out := make([]registryEntry, 0, len(entries))
	for _, e := range entries {
		dir := "buy"
		if e.Direction == engine.DirectionSell {
			dir = "sell"
		}
		out = append(out, registryEntry{UserID: e.UserID, Symbol: e.Symbol, Direction: dir})
	}
	WriteJSON(w, http.StatusOK, out)
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}
