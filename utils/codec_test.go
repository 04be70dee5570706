package utils

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvp-battle-server/models"
)

func TestEncodeWrapsPayload(t *testing.T) {
	b, err := Encode(models.EventLoginOK, models.LoginOK{PlayerID: "A"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"login.ok","data":{"playerId":"A"}}`, string(b))

	b, err = Encode(models.EventMatchWaiting, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"match.waiting","data":{}}`, string(b))

	_, err = Encode("", nil)
	assert.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"battle.attack","data":{"battleId":"b1","damage":12.5}}`))
	require.NoError(t, err)
	assert.Equal(t, models.EventBattleAttack, env.Event)

	req, err := DecodePayload[models.AttackRequest](env)
	require.NoError(t, err)
	assert.Equal(t, "b1", req.BattleID)
	assert.Equal(t, 12.5, req.Damage)

	for _, frame := range []string{``, `nope`, `{"data":{}}`, `[]`} {
		_, err := DecodeEnvelope([]byte(frame))
		assert.Error(t, err, "frame %q", frame)
	}
}

func TestDecodePayloadEmptyData(t *testing.T) {
	req, err := DecodePayload[models.MatchRequest](models.Envelope{Event: models.EventMatchRequest})
	require.NoError(t, err)
	assert.Empty(t, req.Mode)

	_, err = DecodePayload[models.MatchRequest](models.Envelope{Event: models.EventMatchRequest, Data: []byte(`"x"`)})
	assert.Error(t, err)
}

func TestOverwriteFieldKeepsOtherFields(t *testing.T) {
	raw := []byte(`{"battleId":"b1","x":1.25,"senderId":"spoofed","extra":{"combo":3}}`)

	out, err := OverwriteField(raw, "senderId", "A")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "A", got["senderId"])
	assert.Equal(t, "b1", got["battleId"])
	assert.Equal(t, 1.25, got["x"])
	assert.Equal(t, map[string]any{"combo": float64(3)}, got["extra"])

	_, err = OverwriteField([]byte(`[1,2]`), "senderId", "A")
	assert.Error(t, err)
}

func TestEncodeRawKeepsPayloadVerbatim(t *testing.T) {
	b, err := EncodeRaw(models.EventBattlePosition, []byte(`{"x":1,"senderId":"A"}`))
	require.NoError(t, err)

	env, err := DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, models.EventBattlePosition, env.Event)
	assert.JSONEq(t, `{"x":1,"senderId":"A"}`, string(env.Data))
}
