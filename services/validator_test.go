package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustingValidator(t *testing.T) {
	v := NewAttackValidator("anything")
	attacker := fighter("A", 10, 10)

	dmg, err := v.Validate(attacker, 12.9)
	require.NoError(t, err)
	assert.Equal(t, 12, dmg)

	dmg, err = v.Validate(attacker, 1e12)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, dmg)

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := v.Validate(attacker, bad)
		assert.ErrorIs(t, err, ErrMalformedDamage, "declared %v", bad)
	}
}

func TestBoundedValidator(t *testing.T) {
	v := NewAttackValidator(ValidationBounded)
	require.IsType(t, BoundedValidator{}, v)

	dmg, err := v.Validate(fighter("A", 15, 10), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, dmg)

	_, err = v.Validate(fighter("A", 15, 10), 31)
	assert.ErrorIs(t, err, ErrDamageCeiling)

	dmg, err = v.Validate(fighter("weak", 0, 10), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, dmg, "ceiling never drops below one")

	_, err = v.Validate(fighter("A", 15, 10), -3)
	assert.ErrorIs(t, err, ErrMalformedDamage)
}
