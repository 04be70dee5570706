package models

import (
	"time"
)

// CombatMode selects how a battle gates damage.
type CombatMode string

const (
	ModeRealtime CombatMode = "realtime" // free real-time, damage whenever it arrives
	ModeTurn     CombatMode = "turn"     // turn-gated, one attack per turn
)

// ParseCombatMode falls back to def for empty or unknown values.
func ParseCombatMode(s string, def CombatMode) CombatMode {
	switch CombatMode(s) {
	case ModeRealtime, ModeTurn:
		return CombatMode(s)
	}
	return def
}

type BattleStatus string

const (
	BattleActive BattleStatus = "active"
	BattleEnded  BattleStatus = "ended"
)

type EndReason string

const (
	EndLethal     EndReason = "lethal"
	EndSurrender  EndReason = "surrender"
	EndDisconnect EndReason = "disconnect"
	EndForced     EndReason = "forced" // server shutdown or explicit End
)

// Position is advisory rendering state; it is never used for hit detection.
type Position struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VelocityX   float64 `json:"velocityX"`
	VelocityY   float64 `json:"velocityY"`
	FacingRight bool    `json:"facingRight"`
}

// ParticipantView is one side of a battle as sent to clients.
type ParticipantView struct {
	PlayerSnapshot PlayerSnapshot `json:"playerSnapshot"`
	CurrentHealth  int            `json:"currentHealth"`
	MaxHealth      int            `json:"maxHealth"`
	Position       Position       `json:"position"`
}

type ActionKind string

const (
	ActionDamage      ActionKind = "damage"
	ActionSurrender   ActionKind = "surrender"
	ActionDisconnect  ActionKind = "disconnect"
	ActionTurnTimeout ActionKind = "turn_timeout"
	ActionEnd         ActionKind = "end"
)

// ActionEntry is one line of a battle's append-only action log.
type ActionEntry struct {
	At          time.Time  `json:"at"`
	Kind        ActionKind `json:"kind"`
	ActorID     string     `json:"actorId,omitempty"`
	TargetID    string     `json:"targetId,omitempty"`
	Amount      int        `json:"amount,omitempty"`
	HealthAfter int        `json:"healthAfter,omitempty"`
}

// Outcome is recorded exactly once when a battle ends.
type Outcome struct {
	WinnerID string    `json:"winnerId"`
	LoserID  string    `json:"loserId"`
	Reason   EndReason `json:"reason"`
}

// BattleSnapshot is a point-in-time copy of a battle session.
type BattleSnapshot struct {
	BattleID     string            `json:"battleId"`
	Mode         CombatMode        `json:"mode"`
	Status       BattleStatus      `json:"status"`
	Participants []ParticipantView `json:"participants"`
	CurrentTurn  string            `json:"currentTurn,omitempty"`
	Outcome      *Outcome          `json:"outcome,omitempty"`
	Actions      []ActionEntry     `json:"actions,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	EndedAt      *time.Time        `json:"endedAt,omitempty"`
}

// Participant returns the view for playerID, if present.
func (s BattleSnapshot) Participant(playerID string) (ParticipantView, bool) {
	for _, p := range s.Participants {
		if p.PlayerSnapshot.ID == playerID {
			return p, true
		}
	}
	return ParticipantView{}, false
}

// Settlement is handed to the progression side once per battle, after the
// end-of-battle notification has been sent.
type Settlement struct {
	BattleID string         `json:"battleId"`
	Mode     CombatMode     `json:"mode"`
	WinnerID string         `json:"winnerId"`
	LoserID  string         `json:"loserId"`
	Reason   EndReason      `json:"reason"`
	Snapshot BattleSnapshot `json:"snapshot"`
	EndedAt  time.Time      `json:"endedAt"`
}

// Duration is the wall-clock length of the battle.
func (s Settlement) Duration() time.Duration {
	if s.EndedAt.Before(s.Snapshot.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.Snapshot.StartedAt)
}

// Rewards is what a participant earns from one battle.
type Rewards struct {
	Exp    int64 `json:"exp"`
	Rating int64 `json:"rating"`
}
