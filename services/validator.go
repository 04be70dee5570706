package services

import (
	"math"

	"github.com/rotisserie/eris"

	"pvp-battle-server/models"
)

var (
	ErrMalformedDamage = eris.New("damage must be a finite non-negative number")
	ErrDamageCeiling   = eris.New("damage exceeds attacker ceiling")
)

const (
	ValidationTrust   = "trust"
	ValidationBounded = "bounded"

	// DamageCeilingPerStrength caps a single hit in bounded mode.
	DamageCeilingPerStrength = 2
)

// AttackValidator decides whether a client-declared hit is admitted and
// returns the amount to apply.
type AttackValidator interface {
	Validate(attacker models.PlayerSnapshot, declared float64) (int, error)
}

// NewAttackValidator returns the validator for a PVP_ATTACK_VALIDATION value.
// Unknown values fall back to trust.
func NewAttackValidator(mode string) AttackValidator {
	if mode == ValidationBounded {
		return BoundedValidator{}
	}
	return TrustingValidator{}
}

// TrustingValidator accepts whatever the client declares.
type TrustingValidator struct{}

func (TrustingValidator) Validate(_ models.PlayerSnapshot, declared float64) (int, error) {
	return sanitizeDamage(declared)
}

// BoundedValidator rejects hits above strength*2 of the attacker's snapshot.
type BoundedValidator struct{}

func (BoundedValidator) Validate(attacker models.PlayerSnapshot, declared float64) (int, error) {
	dmg, err := sanitizeDamage(declared)
	if err != nil {
		return 0, err
	}
	ceiling := attacker.Attributes.Strength * DamageCeilingPerStrength
	if ceiling < 1 {
		ceiling = 1
	}
	if dmg > ceiling {
		return 0, eris.Wrapf(ErrDamageCeiling, "declared %d, ceiling %d", dmg, ceiling)
	}
	return dmg, nil
}

func sanitizeDamage(declared float64) (int, error) {
	if math.IsNaN(declared) || math.IsInf(declared, 0) || declared < 0 {
		return 0, ErrMalformedDamage
	}
	if declared > math.MaxInt32 {
		declared = math.MaxInt32
	}
	return int(math.Floor(declared)), nil
}
