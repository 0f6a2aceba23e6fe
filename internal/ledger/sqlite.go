package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id TEXT PRIMARY KEY,
	doc     TEXT NOT NULL,
	version INTEGER NOT NULL
);`

// SQLite is a durable Ledger backed by a single sqlite database. Each
// account document is stored as one JSON row with a version column; the
// conditional update is an UPDATE guarded by the version read, so a
// racing writer makes the statement match zero rows and the loser
// observes domain.ErrConflict.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the ledger database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create accounts table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Exists(userID string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM accounts WHERE user_id = ?`, userID).Scan(&one)
	return err == nil
}

func (s *SQLite) Get(userID string) (*domain.Account, error) {
	a, _, err := s.load(userID)
	return a, err
}

func (s *SQLite) Create(a *domain.Account) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", a.UserID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO accounts (user_id, doc, version) VALUES (?, ?, ?)`,
		a.UserID, string(doc), a.Version,
	)
	if err != nil {
		if s.Exists(a.UserID) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert account %s: %w", a.UserID, err)
	}
	return nil
}

func (s *SQLite) Update(userID string, expect Precondition, mutate Mutation) (*domain.Account, error) {
	a, version, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	if expect != nil {
		if err := expect(a); err != nil {
			return nil, err
		}
	}
	mutate(a)
	a.Version = version + 1

	doc, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode account %s: %w", userID, err)
	}
	res, err := s.db.Exec(
		`UPDATE accounts SET doc = ?, version = ? WHERE user_id = ? AND version = ?`,
		string(doc), a.Version, userID, version,
	)
	if err != nil {
		return nil, fmt.Errorf("update account %s: %w", userID, err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update account %s: %w", userID, err)
	}
	if matched != 1 {
		return nil, domain.ErrConflict
	}
	return a, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) load(userID string) (*domain.Account, int64, error) {
	var doc string
	var version int64
	err := s.db.QueryRow(
		`SELECT doc, version FROM accounts WHERE user_id = ?`, userID,
	).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, 0, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load account %s: %w", userID, err)
	}
	a := domain.NewAccount(userID)
	if err := json.Unmarshal([]byte(doc), a); err != nil {
		return nil, 0, fmt.Errorf("decode account %s: %w", userID, err)
	}
	a.Version = version
	return a, version, nil
}
