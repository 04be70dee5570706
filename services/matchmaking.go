package services

import (
	"slices"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/rotisserie/eris"

	"pvp-battle-server/models"
)

var ErrAlreadyQueued = eris.New("player already queued")

const (
	DefaultMaxPowerDifference = 2000
	DefaultQueueTimeout       = 60 * time.Second
)

// QueueEntry is one player waiting for an opponent.
type QueueEntry struct {
	PlayerID string
	Power    int64
	Mode     models.CombatMode
	JoinedAt time.Time
	Conn     Conn
}

// MatchQueue pairs waiting players by power proximity. Matching is
// first-found in queue order, not best fit.
type MatchQueue struct {
	mu           sync.Mutex
	entries      []QueueEntry
	maxPowerDiff int64
	timeout      time.Duration
}

func NewMatchQueue(maxPowerDiff int64, timeout time.Duration) *MatchQueue {
	if timeout <= 0 {
		timeout = DefaultQueueTimeout
	}
	return &MatchQueue{
		maxPowerDiff: maxPowerDiff,
		timeout:      timeout,
	}
}

// Enqueue either pairs entry with the first compatible waiting entry, which
// is removed and returned, or appends entry and returns nil. Both entries
// leave the queue under the same lock, so two concurrent compatible
// enqueues produce exactly one pairing.
func (q *MatchQueue) Enqueue(entry QueueEntry) (*QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(entry.PlayerID) >= 0 {
		return nil, ErrAlreadyQueued
	}

	idx := pie.FindFirstUsing(q.entries, func(candidate QueueEntry) bool {
		return candidate.PlayerID != entry.PlayerID &&
			candidate.Mode == entry.Mode &&
			absDiff(candidate.Power, entry.Power) <= q.maxPowerDiff
	})
	if idx >= 0 {
		opponent := q.entries[idx]
		q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
		return &opponent, nil
	}

	q.entries = append(q.entries, entry)
	return nil, nil
}

// Requeue restores an entry that was paired by a battle that never started.
// It keeps the entry's original JoinedAt and queue position and does not
// pair. False if playerID is already waiting again.
func (q *MatchQueue) Requeue(entry QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOf(entry.PlayerID) >= 0 {
		return false
	}
	idx := pie.FindFirstUsing(q.entries, func(e QueueEntry) bool { return e.JoinedAt.After(entry.JoinedAt) })
	if idx < 0 {
		idx = len(q.entries)
	}
	q.entries = slices.Insert(q.entries, idx, entry)
	return true
}

// Cancel removes playerID's entry. Idempotent.
func (q *MatchQueue) Cancel(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(playerID)
	if idx < 0 {
		return false
	}
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	return true
}

// Sweep removes and returns every entry that has waited longer than the
// queue timeout at now.
func (q *MatchQueue) Sweep(now time.Time) []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	expired := func(e QueueEntry) bool { return now.Sub(e.JoinedAt) > q.timeout }
	stale := pie.Filter(q.entries, expired)
	if len(stale) == 0 {
		return nil
	}
	q.entries = pie.FilterNot(q.entries, expired)
	return stale
}

// Contains reports whether playerID is waiting.
func (q *MatchQueue) Contains(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOf(playerID) >= 0
}

func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *MatchQueue) indexOf(playerID string) int {
	return pie.FindFirstUsing(q.entries, func(e QueueEntry) bool { return e.PlayerID == playerID })
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
