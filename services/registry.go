package services

import (
	"sync"
)

// Conn is the outbound half of a player connection. Send must not block on
// the network; implementations queue the frame and report an error only when
// the connection is closed or its buffer is full.
type Conn interface {
	ID() string
	Send([]byte) error
	Close() error
}

// SessionRegistry binds each authenticated player to exactly one live connection.
type SessionRegistry struct {
	mu       sync.RWMutex
	byPlayer map[string]Conn
	byConn   map[string]string // conn id -> player id
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byPlayer: make(map[string]Conn),
		byConn:   make(map[string]string),
	}
}

// Bind replaces any prior binding for playerID and returns the replaced
// connection, or nil.
func (r *SessionRegistry) Bind(playerID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection logging in as someone else drops its old identity.
	if prevPlayer, ok := r.byConn[conn.ID()]; ok && prevPlayer != playerID {
		delete(r.byPlayer, prevPlayer)
	}

	prev, ok := r.byPlayer[playerID]
	if ok {
		delete(r.byConn, prev.ID())
	}
	r.byPlayer[playerID] = conn
	r.byConn[conn.ID()] = playerID

	if ok && prev.ID() != conn.ID() {
		return prev
	}
	return nil
}

// Unbind removes the binding owned by conn. It reports the player that was
// unbound; a connection already replaced by a newer one unbinds nothing.
func (r *SessionRegistry) Unbind(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	playerID, ok := r.byConn[conn.ID()]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn.ID())
	if cur, ok := r.byPlayer[playerID]; ok && cur.ID() == conn.ID() {
		delete(r.byPlayer, playerID)
	}
	return playerID, true
}

// Resolve returns the live connection for playerID.
func (r *SessionRegistry) Resolve(playerID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byPlayer[playerID]
	return c, ok
}

// PlayerOf returns the player bound to conn. This is the only identity
// trusted for inbound events.
func (r *SessionRegistry) PlayerOf(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[conn.ID()]
	return id, ok
}

// Online returns the number of bound players.
func (r *SessionRegistry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPlayer)
}
