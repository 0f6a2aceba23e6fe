// Package quote provides the market price source for the trading core.
// Prices come from the legacy quote server over a line-oriented TCP
// protocol and may be stale; the core never bounds staleness.
package quote

import (
	"context"
	"sync"
	"time"
)

// Quote is one price observation for a (user, symbol) pair.
type Quote struct {
	Symbol    string
	UserID    string
	Price     int64 // cents
	Timestamp time.Time
	CryptoKey string
}

// Source returns the current price for (user, symbol).
type Source interface {
	GetQuote(ctx context.Context, userID, symbol string) (Quote, error)
}

// FixedSource is a Source serving prices from a static map, for tests
// and local runs without a quote server. Prices can be repointed at any
// time to simulate market movement.
type FixedSource struct {
	mu     sync.RWMutex
	prices map[string]int64
}

// NewFixedSource creates a FixedSource with the given symbol → cents map.
func NewFixedSource(prices map[string]int64) *FixedSource {
	p := make(map[string]int64, len(prices))
	for sym, c := range prices {
		p[sym] = c
	}
	return &FixedSource{prices: p}
}

// SetPrice sets the price for symbol.
func (s *FixedSource) SetPrice(symbol string, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = cents
}

func (s *FixedSource) GetQuote(_ context.Context, userID, symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Quote{
		Symbol:    symbol,
		UserID:    userID,
		Price:     s.prices[symbol],
		Timestamp: time.Now(),
	}, nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, userID, symbol string) (Quote, error)

func (f SourceFunc) GetQuote(ctx context.Context, userID, symbol string) (Quote, error) {
	return f(ctx, userID, symbol)
}
