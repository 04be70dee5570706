package models

import (
	"encoding/json"
)

// Inbound (client → server) event names.
const (
	EventLogin           = "login"
	EventMatchRequest    = "match.request"
	EventMatchCancel     = "match.cancel"
	EventBattlePosition  = "battle.position"
	EventBattleAttack    = "battle.attack"
	EventBattleSurrender = "battle.surrender"
	EventBattleDefeated  = "battle.defeated"
	EventBattleInvite    = "battle.invite"
	EventBattleAccept    = "battle.accept"
)

// Outbound (server → client) event names. battle.position is relayed under
// the same name it arrived with.
const (
	EventLoginOK              = "login.ok"
	EventLoginFailed          = "login.failed"
	EventMatchWaiting         = "match.waiting"
	EventMatchTimeout         = "match.timeout"
	EventMatchError           = "match.error"
	EventBattleStart          = "battle.start"
	EventBattleDamage         = "battle.damage"
	EventBattleHealthUpdate   = "battle.healthUpdate"
	EventBattleTurn           = "battle.turn"
	EventBattleEnd            = "battle.end"
	EventBattleInviteReceived = "battle.invite.received"
	EventBattleInviteSent     = "battle.invite.sent"
)

// Codes carried by match.error.
const (
	CodeAlreadyQueued   = "AlreadyQueued"
	CodeAlreadyInBattle = "AlreadyInBattle"
	CodeMatchAborted    = "MatchAborted"
	CodeOpponentOffline = "OpponentOffline"
)

// Envelope is the frame every message travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"` // raw payload bytes
}

// ---- inbound payloads ----

type LoginRequest struct {
	PlayerID     string `json:"playerId"`
	SessionToken string `json:"sessionToken"`
}

type MatchRequest struct {
	Mode string `json:"mode,omitempty"`
}

type PositionUpdate struct {
	BattleID    string  `json:"battleId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	VelocityX   float64 `json:"velocityX"`
	VelocityY   float64 `json:"velocityY"`
	FacingRight bool    `json:"facingRight"`
}

// Position drops the routing fields.
func (p PositionUpdate) Position() Position {
	return Position{X: p.X, Y: p.Y, VelocityX: p.VelocityX, VelocityY: p.VelocityY, FacingRight: p.FacingRight}
}

type AttackRequest struct {
	BattleID           string  `json:"battleId"`
	AttackerID         string  `json:"attackerId"`
	TargetID           string  `json:"targetId"`
	Damage             float64 `json:"damage"`
	KnockbackDirection int     `json:"knockbackDirection"`
}

type SurrenderRequest struct {
	BattleID string `json:"battleId"`
	PlayerID string `json:"playerId"`
}

type DefeatedReport struct {
	BattleID string `json:"battleId"`
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId"`
}

type InviteRequest struct {
	TargetID string `json:"targetId"`
	Mode     string `json:"mode,omitempty"`
}

type AcceptRequest struct {
	InviteID string `json:"inviteId"`
}

// ---- outbound payloads ----

type LoginOK struct {
	PlayerID string `json:"playerId"`
}

type MatchError struct {
	Code string `json:"code"`
}

type BattleStart struct {
	BattleID     string            `json:"battleId"`
	Mode         CombatMode        `json:"mode"`
	Participants []ParticipantView `json:"participants"`
	CurrentTurn  string            `json:"currentTurn,omitempty"`
}

type DamageNotice struct {
	BattleID           string `json:"battleId"`
	TargetID           string `json:"targetId"`
	Damage             int    `json:"damage"`
	KnockbackDirection int    `json:"knockbackDirection"`
}

type HealthUpdate struct {
	BattleID           string `json:"battleId"`
	TargetID           string `json:"targetId"`
	CurrentHealth      int    `json:"currentHealth"`
	MaxHealth          int    `json:"maxHealth"`
	KnockbackDirection int    `json:"knockbackDirection"`
}

type TurnNotice struct {
	BattleID    string `json:"battleId"`
	CurrentTurn string `json:"currentTurn"`
}

type BattleEnd struct {
	WinnerID       string         `json:"winnerId"`
	LoserID        string         `json:"loserId"`
	Reason         EndReason      `json:"reason"`
	Result         string         `json:"result"` // victory / defeat, from the recipient's side
	Rewards        Rewards        `json:"rewards"`
	BattleSnapshot BattleSnapshot `json:"battleSnapshot"`
}

type InviteReceived struct {
	InviteID string     `json:"inviteId"`
	FromID   string     `json:"fromId"`
	Mode     CombatMode `json:"mode"`
}

type InviteSent struct {
	InviteID string `json:"inviteId"`
}

const (
	ResultVictory = "victory"
	ResultDefeat  = "defeat"
)
