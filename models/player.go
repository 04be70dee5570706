package models

import (
	"time"

	"gorm.io/gorm"
)

// PowerWeights mirror the progression service's scoring so the battle
// service can recompute power for legacy rows that never stored it.
const (
	PowerWeightStrength     = 10
	PowerWeightAgility      = 10
	PowerWeightIntelligence = 10
	PowerWeightEndurance    = 15
	PowerWeightLevel        = 50
)

// PlayerProfile is the local progression row for a player.
// The battle core only ever reads it through a PlayerSnapshot.
type PlayerProfile struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	SessionToken string `gorm:"index" json:"-"` // opaque token issued by the auth service

	// Core progression
	Level      int   `json:"level" gorm:"default:1"`
	Experience int64 `json:"experience" gorm:"default:0"`
	Power      int64 `json:"power" gorm:"default:0"`

	// Attributes
	Strength     int `json:"strength" gorm:"default:10"`
	Agility      int `json:"agility" gorm:"default:10"`
	Intelligence int `json:"intelligence" gorm:"default:10"`
	Endurance    int `json:"endurance" gorm:"default:10"`

	// PvP record
	PvPWins   int64 `json:"pvp_wins" gorm:"default:0"`
	PvPLosses int64 `json:"pvp_losses" gorm:"default:0"`
	PvPRating int64 `json:"pvp_rating" gorm:"default:1000"`

	LastBattleAt *time.Time `json:"last_battle_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Attributes is the per-attribute stat block copied into a snapshot.
type Attributes struct {
	Strength     int `json:"strength"`
	Agility      int `json:"agility"`
	Intelligence int `json:"intelligence"`
	Endurance    int `json:"endurance"`
}

// PlayerSnapshot is an immutable copy of a player's stats taken once at
// battle start.
type PlayerSnapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Power      int64      `json:"power"`
	Attributes Attributes `json:"attributes"`
}

// ComputePower returns the matchmaking power score for a level and attribute block.
func ComputePower(level int, a Attributes) int64 {
	return int64(a.Strength*PowerWeightStrength +
		a.Agility*PowerWeightAgility +
		a.Intelligence*PowerWeightIntelligence +
		a.Endurance*PowerWeightEndurance +
		level*PowerWeightLevel)
}

// Snapshot copies the profile into a PlayerSnapshot. A zero stored power is
// recomputed from the attributes.
func (p *PlayerProfile) Snapshot() PlayerSnapshot {
	attrs := Attributes{
		Strength:     p.Strength,
		Agility:      p.Agility,
		Intelligence: p.Intelligence,
		Endurance:    p.Endurance,
	}
	power := p.Power
	if power == 0 {
		power = ComputePower(p.Level, attrs)
	}
	return PlayerSnapshot{
		ID:         p.ID,
		Name:       p.Username,
		Level:      p.Level,
		Power:      power,
		Attributes: attrs,
	}
}
