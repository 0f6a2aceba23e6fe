package ledger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
)

// Both drivers must satisfy the same conditional-update contract, so
// every test runs against both.
func eachLedger(t *testing.T, fn func(t *testing.T, l Ledger)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		l, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		defer l.Close()
		fn(t, l)
	})
}

func TestLedger_CreateAndGet(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		a := domain.NewAccount("u1")
		a.Balance = 100000
		a.Available = 100000
		a.Holdings["XYZ"] = &domain.Holding{Quantity: 10, Available: 10}

		if err := l.Create(a); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !l.Exists("u1") {
			t.Error("Exists(u1) = false after Create")
		}
		if l.Exists("u2") {
			t.Error("Exists(u2) = true for absent user")
		}

		got, err := l.Get("u1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Balance != 100000 || got.Available != 100000 {
			t.Errorf("Get returned balance %d/%d, want 100000/100000", got.Balance, got.Available)
		}
		if h := got.Holding("XYZ"); h == nil || h.Quantity != 10 {
			t.Errorf("Get lost holding: %+v", h)
		}

		if _, err := l.Get("nope"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("Get(absent) = %v, want ErrUserNotFound", err)
		}
	})
}

func TestLedger_CreateDuplicate(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		if err := l.Create(domain.NewAccount("u1")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := l.Create(domain.NewAccount("u1")); !errors.Is(err, domain.ErrUserExists) {
			t.Errorf("duplicate Create = %v, want ErrUserExists", err)
		}
	})
}

func TestLedger_Update(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		a := domain.NewAccount("u1")
		a.Balance = 1000
		a.Available = 1000
		if err := l.Create(a); err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, err := l.Update("u1",
			func(a *domain.Account) error {
				if a.Available < 400 {
					return domain.ErrInsufficientFunds
				}
				return nil
			},
			func(a *domain.Account) {
				a.Available -= 400
			},
		)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.Available != 600 {
			t.Errorf("Update returned available %d, want 600", got.Available)
		}

		// Failed precondition surfaces the sentinel and leaves the
		// document untouched.
		_, err = l.Update("u1",
			func(a *domain.Account) error {
				if a.Available < 5000 {
					return domain.ErrInsufficientFunds
				}
				return nil
			},
			func(a *domain.Account) {
				a.Available -= 5000
			},
		)
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("Update with failing precondition = %v, want ErrInsufficientFunds", err)
		}
		after, _ := l.Get("u1")
		if after.Available != 600 {
			t.Errorf("failed update mutated document: available %d, want 600", after.Available)
		}
	})
}

func TestLedger_UpdateAbsentUser(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		_, err := l.Update("ghost", nil, func(a *domain.Account) { a.Balance++ })
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("Update(absent) = %v, want ErrUserNotFound", err)
		}
	})
}

func TestLedger_UpdateBumpsVersion(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		if err := l.Create(domain.NewAccount("u1")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		before, _ := l.Get("u1")
		for i := 0; i < 3; i++ {
			if _, err := l.Update("u1", nil, func(a *domain.Account) { a.Balance += 100 }); err != nil {
				t.Fatalf("Update %d: %v", i, err)
			}
		}
		after, _ := l.Get("u1")
		if after.Version != before.Version+3 {
			t.Errorf("version after 3 updates = %d, want %d", after.Version, before.Version+3)
		}
	})
}

func TestLedger_GetReturnsCopy(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		a := domain.NewAccount("u1")
		a.Balance = 500
		a.Holdings["XYZ"] = &domain.Holding{Quantity: 5, Available: 5}
		if err := l.Create(a); err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, _ := l.Get("u1")
		got.Balance = 0
		got.Holdings["XYZ"].Quantity = 0

		again, _ := l.Get("u1")
		if again.Balance != 500 || again.Holdings["XYZ"].Quantity != 5 {
			t.Error("mutating a Get result leaked into the stored document")
		}
	})
}
