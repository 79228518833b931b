// Package protocol defines the websocket wire format: event names, the
// {"event","data"} envelope, and the JSON and MessagePack codecs that carry it.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Inbound event names
const (
	EventJoinGame       = "joinGame"
	EventPlayerMovement = "playerMovement"
	EventShoot          = "shoot"
	EventRestartGame    = "restartGame"
	EventEndGame        = "endGame"
)

var (
	ErrEmptyEvent = errors.New("envelope has no event name")
	ErrNoData     = errors.New("envelope has no data")
)

// Envelope is a decoded inbound frame. Data stays raw until the handler knows
// which payload type the event carries.
type Envelope struct {
	Event string
	Data  []byte
}

// Codec turns envelopes into websocket frames and back.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary websocket messages.
	Binary() bool
	Encode(event string, data any) ([]byte, error)
	Decode(frame []byte) (Envelope, error)
	Unmarshal(raw []byte, v any) error
}

// ForName picks a codec by its query-string name. Anything unknown gets JSON.
func ForName(name string) Codec {
	if name == (MsgpackCodec{}).Name() {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// DecodeData unmarshals the envelope's payload into a T.
func DecodeData[T any](c Codec, env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, ErrNoData
	}
	if err := c.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	return v, nil
}

// =============================================================================
// JSON
// =============================================================================

type jsonOut struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type jsonIn struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JSONCodec is the default text codec the browser client speaks.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(event string, data any) ([]byte, error) {
	return json.Marshal(jsonOut{Event: event, Data: data})
}

func (JSONCodec) Decode(frame []byte) (Envelope, error) {
	var in jsonIn
	if err := json.Unmarshal(frame, &in); err != nil {
		return Envelope{}, fmt.Errorf("decode json envelope: %w", err)
	}
	if in.Event == "" {
		return Envelope{}, ErrEmptyEvent
	}
	env := Envelope{Event: in.Event}
	if len(in.Data) > 0 && !bytes.Equal(in.Data, []byte("null")) {
		env.Data = in.Data
	}
	return env, nil
}

func (JSONCodec) Unmarshal(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

// =============================================================================
// MESSAGEPACK
// =============================================================================

type msgpackOut struct {
	Event string `msgpack:"event"`
	Data  any    `msgpack:"data,omitempty"`
}

type msgpackIn struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data"`
}

// MsgpackCodec sends the same envelope as binary MessagePack. Struct fields
// are keyed by their json tags so both codecs agree on field names.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(event string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msgpackOut{Event: event, Data: data}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Decode(frame []byte) (Envelope, error) {
	var in msgpackIn
	if err := msgpack.Unmarshal(frame, &in); err != nil {
		return Envelope{}, fmt.Errorf("decode msgpack envelope: %w", err)
	}
	if in.Event == "" {
		return Envelope{}, ErrEmptyEvent
	}
	env := Envelope{Event: in.Event}
	// a lone 0xc0 is msgpack nil
	if len(in.Data) > 0 && !(len(in.Data) == 1 && in.Data[0] == 0xc0) {
		env.Data = in.Data
	}
	return env, nil
}

func (MsgpackCodec) Unmarshal(raw []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
