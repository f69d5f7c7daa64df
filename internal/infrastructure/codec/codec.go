// Package codec encodes protocol messages into the {type, payload} wire envelope.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/domain/protocol"
)

var (
	// ErrUnknownKind is returned when an envelope carries a type tag the codec does not know
	ErrUnknownKind = errors.New("unknown message type")
	// ErrUnknownCodec is returned by New for an unsupported codec name
	ErrUnknownCodec = errors.New("unknown codec")
)

// Codec translates protocol messages to and from wire frames
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages
	Binary() bool

	EncodeEvent(ev protocol.Event) ([]byte, error)
	DecodeEvent(data []byte) (protocol.Event, error)
	EncodeCommand(cmd protocol.Command) ([]byte, error)
	DecodeCommand(data []byte) (protocol.Command, error)
}

// New returns the codec registered under name ("json" or "msgpack")
func New(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON(), nil
	case "msgpack":
		return MsgPack(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSON returns the text codec
func JSON() Codec {
	return &envelopeCodec{
		name:      "json",
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
		split: func(data []byte) (protocol.Kind, []byte, error) {
			var env struct {
				Type    protocol.Kind   `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			err := json.Unmarshal(data, &env)
			return env.Type, env.Payload, err
		},
	}
}

// MsgPack returns the binary codec
func MsgPack() Codec {
	return &envelopeCodec{
		name:      "msgpack",
		binary:    true,
		marshal:   msgpack.Marshal,
		unmarshal: msgpack.Unmarshal,
		split: func(data []byte) (protocol.Kind, []byte, error) {
			var env struct {
				Type    protocol.Kind      `msgpack:"type"`
				Payload msgpack.RawMessage `msgpack:"payload"`
			}
			err := msgpack.Unmarshal(data, &env)
			return env.Type, env.Payload, err
		},
	}
}

type envelope struct {
	Type    protocol.Kind `json:"type" msgpack:"type"`
	Payload any           `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

type envelopeCodec struct {
	name      string
	binary    bool
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
	split     func([]byte) (protocol.Kind, []byte, error)
}

func (c *envelopeCodec) Name() string { return c.name }
func (c *envelopeCodec) Binary() bool { return c.binary }

func (c *envelopeCodec) EncodeEvent(ev protocol.Event) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case protocol.Ready:
	case *protocol.BatchUpdate:
		payload = e
	case protocol.Error:
		payload = e.Message
	default:
		return nil, fmt.Errorf("%w: event %T", ErrUnknownKind, ev)
	}
	return c.encode(ev.Kind(), payload)
}

func (c *envelopeCodec) EncodeCommand(cmd protocol.Command) ([]byte, error) {
	var payload any
	switch m := cmd.(type) {
	case protocol.Tick:
		payload = m.Tick
	case protocol.BatchTicks:
		payload = m.Ticks
	case protocol.SetTimeframe:
		payload = m.Timeframe
	case protocol.Subscribe:
		payload = m.Symbols
	case protocol.Unsubscribe:
		payload = m.Symbols
	case protocol.InitSnapshot:
		payload = m.Snapshot
	default:
		return nil, fmt.Errorf("%w: command %T", ErrUnknownKind, cmd)
	}
	return c.encode(cmd.Kind(), payload)
}

func (c *envelopeCodec) encode(kind protocol.Kind, payload any) ([]byte, error) {
	data, err := c.marshal(envelope{Type: kind, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return data, nil
}

func (c *envelopeCodec) DecodeEvent(data []byte) (protocol.Event, error) {
	kind, raw, err := c.split(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", c.name, err)
	}

	switch kind {
	case protocol.KindReady:
		return protocol.Ready{}, nil
	case protocol.KindBatchUpdate:
		batch := protocol.NewBatchUpdate(0)
		if err := c.payload(kind, raw, batch); err != nil {
			return nil, err
		}
		return batch, nil
	case protocol.KindError:
		var msg string
		if err := c.payload(kind, raw, &msg); err != nil {
			return nil, err
		}
		return protocol.Error{Message: msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (c *envelopeCodec) DecodeCommand(data []byte) (protocol.Command, error) {
	kind, raw, err := c.split(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", c.name, err)
	}

	switch kind {
	case protocol.KindTick:
		var tick entity.RawTick
		if err := c.payload(kind, raw, &tick); err != nil {
			return nil, err
		}
		return protocol.Tick{Tick: tick}, nil
	case protocol.KindBatchTicks:
		var ticks []entity.RawTick
		if err := c.payload(kind, raw, &ticks); err != nil {
			return nil, err
		}
		return protocol.BatchTicks{Ticks: ticks}, nil
	case protocol.KindSetTimeframe:
		var tf entity.Timeframe
		if err := c.payload(kind, raw, &tf); err != nil {
			return nil, err
		}
		return protocol.SetTimeframe{Timeframe: tf}, nil
	case protocol.KindSubscribe, protocol.KindUnsubscribe:
		var symbols []string
		if err := c.payload(kind, raw, &symbols); err != nil {
			return nil, err
		}
		if kind == protocol.KindSubscribe {
			return protocol.Subscribe{Symbols: symbols}, nil
		}
		return protocol.Unsubscribe{Symbols: symbols}, nil
	case protocol.KindInitSnapshot:
		var snap map[string]entity.SnapshotEntry
		if err := c.payload(kind, raw, &snap); err != nil {
			return nil, err
		}
		return protocol.InitSnapshot{Snapshot: snap}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (c *envelopeCodec) payload(kind protocol.Kind, raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := c.unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return nil
}
