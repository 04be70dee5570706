package utils

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"pvp-battle-server/models"
)

// Encode wraps payload in an envelope for event.
func Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, eris.New("trying to encode envelope with empty event")
	}
	if payload == nil {
		payload = struct{}{}
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "encode %s payload", event)
	}
	return json.Marshal(models.Envelope{Event: event, Data: pb})
}

// EncodeRaw wraps an already encoded payload. Used for relays.
func EncodeRaw(event string, data []byte) ([]byte, error) {
	if event == "" {
		return nil, eris.New("trying to encode envelope with empty event")
	}
	b, err := json.Marshal(models.Envelope{Event: event, Data: data})
	if err != nil {
		return nil, eris.Wrapf(err, "encode %s envelope", event)
	}
	return b, nil
}

// DecodeEnvelope parses one inbound frame.
func DecodeEnvelope(b []byte) (models.Envelope, error) {
	if len(b) == 0 {
		return models.Envelope{}, eris.New("decode envelope: empty frame")
	}
	var e models.Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return models.Envelope{}, eris.Wrap(err, "decode envelope")
	}
	if e.Event == "" {
		return models.Envelope{}, eris.New("decode envelope: missing event")
	}
	return e, nil
}

// DecodePayload unmarshals the envelope payload into T. An absent payload
// decodes to T's zero value, since several events carry "{}".
func DecodePayload[T any](env models.Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, eris.Wrapf(err, "decode %s payload", env.Event)
	}
	return out, nil
}

// OverwriteField returns raw with key set to value, keeping every other
// field verbatim. raw must be a JSON object.
func OverwriteField(raw []byte, key string, value any) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, eris.Wrap(err, "relay payload is not an object")
		}
	}
	vb, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrapf(err, "encode %s", key)
	}
	fields[key] = vb
	return json.Marshal(fields)
}
