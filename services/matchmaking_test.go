package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvp-battle-server/models"
)

func entry(id string, power int64, joined time.Time) QueueEntry {
	return QueueEntry{PlayerID: id, Power: power, Mode: models.ModeRealtime, JoinedAt: joined, Conn: newFakeConn("conn-" + id)}
}

func TestEnqueueRejectsDuplicatePlayer(t *testing.T) {
	q := NewMatchQueue(DefaultMaxPowerDifference, DefaultQueueTimeout)
	now := time.Now()

	opp, err := q.Enqueue(entry("A", 1000, now))
	require.NoError(t, err)
	assert.Nil(t, opp)

	_, err = q.Enqueue(entry("A", 1000, now))
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, q.Len())
}

func TestEnqueuePairsFirstCompatibleEntry(t *testing.T) {
	q := NewMatchQueue(2000, DefaultQueueTimeout)
	now := time.Now()

	_, _ = q.Enqueue(entry("far", 9000, now))
	_, _ = q.Enqueue(entry("near-1", 3900, now))
	_, _ = q.Enqueue(entry("near-2", 500, now))
	require.Equal(t, 3, q.Len())

	opp, err := q.Enqueue(entry("me", 2000, now))
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.Equal(t, "near-1", opp.PlayerID, "first found in queue order, not closest")
	assert.False(t, q.Contains("near-1"))
	assert.False(t, q.Contains("me"))
	assert.Equal(t, 2, q.Len())
}

func TestEnqueueBoundaryAndModes(t *testing.T) {
	q := NewMatchQueue(2000, DefaultQueueTimeout)
	now := time.Now()

	_, _ = q.Enqueue(entry("A", 1000, now))
	opp, err := q.Enqueue(entry("B", 3001, now))
	require.NoError(t, err)
	assert.Nil(t, opp, "difference above the limit never pairs")

	opp, err = q.Enqueue(entry("C", 3000, now))
	require.NoError(t, err)
	require.NotNil(t, opp, "difference equal to the limit pairs")
	assert.Equal(t, "A", opp.PlayerID)

	turn := entry("D", 3001, now)
	turn.Mode = models.ModeTurn
	opp, err = q.Enqueue(turn)
	require.NoError(t, err)
	assert.Nil(t, opp, "modes never mix")
}

func TestConcurrentEnqueueProducesOnePairing(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := NewMatchQueue(2000, DefaultQueueTimeout)
		now := time.Now()
		var pairings atomic.Int32
		var wg sync.WaitGroup
		for _, id := range []string{"A", "B"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				opp, err := q.Enqueue(entry(id, 1000, now))
				assert.NoError(t, err)
				if opp != nil {
					pairings.Add(1)
				}
			}(id)
		}
		wg.Wait()
		assert.Equal(t, int32(1), pairings.Load())
		assert.Equal(t, 0, q.Len())
	}
}

func TestConcurrentEnqueueNeverDoubleMatches(t *testing.T) {
	q := NewMatchQueue(1_000_000, DefaultQueueTimeout)
	now := time.Now()

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			opp, err := q.Enqueue(entry(id, int64(i), now))
			assert.NoError(t, err)
			if opp != nil {
				mu.Lock()
				seen[id]++
				seen[opp.PlayerID]++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	for id, n := range seen {
		assert.Equal(t, 1, n, "player %s matched more than once", id)
	}
	assert.Equal(t, 100, len(seen)+q.Len())
}

func TestSweepExpiresStaleEntries(t *testing.T) {
	q := NewMatchQueue(0, time.Minute)
	now := time.Now()

	_, _ = q.Enqueue(entry("stale", 1, now.Add(-61*time.Second)))
	_, _ = q.Enqueue(entry("fresh", 5000, now.Add(-10*time.Second)))

	stale := q.Sweep(now)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].PlayerID)
	assert.False(t, q.Contains("stale"))
	assert.True(t, q.Contains("fresh"))

	assert.Empty(t, q.Sweep(now), "a second sweep finds nothing")

	_, err := q.Enqueue(entry("stale", 1, now))
	assert.NoError(t, err, "re-enqueue after expiry succeeds")
}

func TestCancelIsIdempotent(t *testing.T) {
	q := NewMatchQueue(0, time.Minute)
	_, _ = q.Enqueue(entry("A", 1, time.Now()))

	assert.True(t, q.Cancel("A"))
	assert.False(t, q.Cancel("A"))
	assert.Equal(t, 0, q.Len())
}

func TestRequeueKeepsOriginalPosition(t *testing.T) {
	q := NewMatchQueue(100, time.Minute)
	now := time.Now()

	_, _ = q.Enqueue(entry("early", 5000, now.Add(-30*time.Second)))
	_, _ = q.Enqueue(entry("late", 5000, now))

	assert.True(t, q.Requeue(entry("back", 5000, now.Add(-40*time.Second))))
	assert.False(t, q.Requeue(entry("back", 5000, now)), "already waiting")
	assert.Equal(t, 3, q.Len())

	opp, err := q.Enqueue(entry("me", 5000, now))
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.Equal(t, "back", opp.PlayerID, "restored entry keeps its place at the head")

	stale := q.Sweep(now.Add(31 * time.Second))
	require.Len(t, stale, 1)
	assert.Equal(t, "early", stale[0].PlayerID)
}

func TestRequeueDoesNotPair(t *testing.T) {
	q := NewMatchQueue(DefaultMaxPowerDifference, DefaultQueueTimeout)
	now := time.Now()

	_, _ = q.Enqueue(entry("A", 1000, now))
	assert.True(t, q.Requeue(entry("B", 1000, now.Add(-time.Second))))
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.Contains("A"))
	assert.True(t, q.Contains("B"))
}
