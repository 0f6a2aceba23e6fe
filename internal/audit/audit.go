// Package audit records one event per processed command and serves
// DUMPLOG exports. Events are kept ordered by transaction sequence
// number so dumps come out in command order regardless of append
// interleaving.
package audit

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
)

// Event is one processed command.
type Event struct {
	ID      string
	Seq     int64
	UserID  string
	Command string
	Params  string
	Outcome string // "ok" or the error code reported to the user
	When    time.Time
}

// Log is a thread-safe event log ordered by (Seq, When).
type Log struct {
	mu     sync.Mutex
	tree   *btree.BTreeG[*Event]
	server string
}

func eventLess(a, b *Event) bool {
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	if !a.When.Equal(b.When) {
		return a.When.Before(b.When)
	}
	return a.ID < b.ID
}

// NewLog creates an empty Log. server names this worker in dumped
// entries.
func NewLog(server string) *Log {
	return &Log{
		tree:   btree.NewG(8, eventLess),
		server: server,
	}
}

// Append records an event, assigning it an id and timestamp.
func (l *Log) Append(seq int64, userID, command, params, outcome string) *Event {
	e := &Event{
		ID:      uuid.NewString(),
		Seq:     seq,
		UserID:  userID,
		Command: command,
		Params:  params,
		Outcome: outcome,
		When:    time.Now(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tree.ReplaceOrInsert(e)
	return e
}

// Events returns all events in sequence order, optionally filtered to
// one user. An empty userID selects everything.
func (l *Log) Events(userID string) []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Event, 0, l.tree.Len())
	l.tree.Ascend(func(e *Event) bool {
		if userID == "" || e.UserID == userID {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.tree.Len()
}
