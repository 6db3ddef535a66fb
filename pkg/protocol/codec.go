package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrEmptyPayload is returned when an envelope carries no payload bytes.
var ErrEmptyPayload = errors.New("empty payload")

// Envelope wraps every message on the wire. Payload stays encoded until a
// handler decodes it into its concrete type.
type Envelope struct {
	Type    string
	Payload []byte
}

// Codec turns typed payloads into wire frames and back.
type Codec interface {
	Name() string
	// Binary reports whether frames should be sent as binary websocket messages.
	Binary() bool
	Encode(msgType string, payload any) ([]byte, error)
	DecodeEnvelope(b []byte) (Envelope, error)
	Unmarshal(data []byte, v any) error
}

// CodecByName returns the codec registered under name ("json" or "cbor").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Decode unmarshals the envelope payload into T and validates it.
func Decode[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, fmt.Errorf("%w for type %q", ErrEmptyPayload, env.Type)
	}
	if err := c.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("invalid %s: %w", env.Type, err)
		}
	}
	return out, nil
}

func checkEncode(msgType string, payload any) error {
	if msgType == "" {
		return errors.New("envelope type is empty")
	}
	if payload == nil {
		return fmt.Errorf("nil payload for type %q", msgType)
	}
	return nil
}

// JSON is the text codec.
type JSON struct{}

type jsonEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Encode(msgType string, payload any) ([]byte, error) {
	if err := checkEncode(msgType, payload); err != nil {
		return nil, err
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonEnvelope{Type: msgType, Payload: pb})
}

func (JSON) DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, errors.New("decode envelope: zero-length frame")
	}
	var e jsonEnvelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	if e.Type == "" {
		return Envelope{}, errors.New("decode envelope: missing type")
	}
	return Envelope{Type: e.Type, Payload: e.Payload}, nil
}

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBOR is the binary codec. Payload structs reuse their json tags.
type CBOR struct{}

type cborEnvelope struct {
	Type    string          `cbor:"type"`
	Payload cbor.RawMessage `cbor:"payload"`
}

func (CBOR) Name() string { return "cbor" }
func (CBOR) Binary() bool { return true }

func (CBOR) Encode(msgType string, payload any) ([]byte, error) {
	if err := checkEncode(msgType, payload); err != nil {
		return nil, err
	}
	pb, err := cbor.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(cborEnvelope{Type: msgType, Payload: pb})
}

func (CBOR) DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, errors.New("decode envelope: zero-length frame")
	}
	var e cborEnvelope
	if err := cbor.Unmarshal(b, &e); err != nil {
		return Envelope{}, err
	}
	if e.Type == "" {
		return Envelope{}, errors.New("decode envelope: missing type")
	}
	return Envelope{Type: e.Type, Payload: e.Payload}, nil
}

func (CBOR) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
