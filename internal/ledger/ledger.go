// Package ledger holds the account documents, one per user, and is the
// system's sole optimistic-concurrency mechanism. Every mutation is a
// conditional update: a precondition checked against the current
// document plus a mutation, applied atomically. A precondition that no
// longer holds is reported to the caller, never retried here.
package ledger

import "github.com/janhavidudhat/CSC468-group3/internal/domain"

// Precondition inspects the current account document and returns nil if
// the update may proceed, or a domain sentinel describing why not
// (insufficient funds, missing holding, ...). It must not mutate.
type Precondition func(*domain.Account) error

// Mutation applies the update to a private copy of the document. It
// runs only after the precondition passed.
type Mutation func(*domain.Account)

// Ledger is the conditional-update store boundary. Implementations must
// guarantee that between the precondition check and the write no other
// update lands on the same document; a lost race surfaces as
// domain.ErrConflict (matched count zero), never as silent divergence.
type Ledger interface {
	// Exists reports whether an account document exists for the user.
	Exists(userID string) bool

	// Get returns a deep copy of the account, or domain.ErrUserNotFound.
	Get(userID string) (*domain.Account, error)

	// Create inserts a new account document. It returns
	// domain.ErrUserExists if one is already present.
	Create(a *domain.Account) error

	// Update runs one conditional update against the user's document
	// and returns the updated copy. Errors: domain.ErrUserNotFound,
	// whatever sentinel the precondition returned, or
	// domain.ErrConflict when the document changed underneath.
	Update(userID string, expect Precondition, mutate Mutation) (*domain.Account, error)

	// Close releases any underlying resources.
	Close() error
}
