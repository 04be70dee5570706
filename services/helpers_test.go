package services

import (
	"context"
	"sync"
	"testing"

	"github.com/elliotchance/pie/v2"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"pvp-battle-server/models"
	"pvp-battle-server/utils"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return eris.New("closed")
	}
	c.frames = append(c.frames, b)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) events(t *testing.T) []models.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := utils.DecodeEnvelope(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) count(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, env := range c.events(t) {
		if env.Event == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) last(t *testing.T, event string) models.Envelope {
	t.Helper()
	events := c.events(t)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event == event {
			return events[i]
		}
	}
	t.Fatalf("connection %s never received %s", c.id, event)
	return models.Envelope{}
}

// index is the position of the first event frame, or -1.
func (c *fakeConn) index(t *testing.T, event string) int {
	t.Helper()
	return pie.FindFirstUsing(c.events(t), func(env models.Envelope) bool { return env.Event == event })
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func decodeAs[T any](t *testing.T, env models.Envelope) T {
	t.Helper()
	out, err := utils.DecodePayload[T](env)
	require.NoError(t, err)
	return out
}

type fakeDirectory struct {
	mu      sync.Mutex
	players map[string]models.PlayerSnapshot
	fetches map[string]int
	// onFetch runs after the nth lookup of playerID, outside the lock.
	onFetch func(playerID string, n int)
}

func newFakeDirectory(players ...models.PlayerSnapshot) *fakeDirectory {
	d := &fakeDirectory{
		players: make(map[string]models.PlayerSnapshot),
		fetches: make(map[string]int),
	}
	for _, p := range players {
		d.players[p.ID] = p
	}
	return d
}

func (d *fakeDirectory) GetPlayerSnapshot(_ context.Context, playerID string) (models.PlayerSnapshot, error) {
	d.mu.Lock()
	p, ok := d.players[playerID]
	d.fetches[playerID]++
	n, hook := d.fetches[playerID], d.onFetch
	d.mu.Unlock()

	if hook != nil {
		hook(playerID, n)
	}
	if !ok {
		return models.PlayerSnapshot{}, ErrPlayerNotFound
	}
	return p, nil
}

func (d *fakeDirectory) hook(fn func(playerID string, n int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFetch = fn
}

// fakeTokens accepts "token-<playerId>".
type fakeTokens struct{}

func (fakeTokens) ValidateToken(_ context.Context, playerID, token string) (bool, error) {
	return token == "token-"+playerID, nil
}

type fakeSink struct {
	mu          sync.Mutex
	settlements []models.Settlement
	full        bool
}

func (s *fakeSink) Enqueue(st models.Settlement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.settlements = append(s.settlements, st)
	return true
}

func (s *fakeSink) all() []models.Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Settlement(nil), s.settlements...)
}
