// Package protocol defines the JSON messages exchanged with the emulator
// server: updates flowing to the client and commands flowing back.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks a payload that is not valid JSON or an update missing a
// field its kind requires.
var ErrMalformed = errors.New("malformed payload")

// CassetteDrive is the Motor address that denotes the cassette rather than a
// disk drive.
const CassetteDrive = -1

// Update is a server-to-client state change. The concrete types are Poke,
// Motor, Breakpoint, Message, Expanded, Shutdown and Unknown.
type Update interface {
	Kind() string
	isUpdate()
}

// Poke writes Data to consecutive addresses starting at Addr.
type Poke struct {
	Addr int
	Data []byte
}

// Motor turns a drive motor indicator on or off. Drive is CassetteDrive for
// the cassette.
type Motor struct {
	Drive int
	On    bool
}

// IsCassette reports whether the update concerns the cassette motor.
func (m Motor) IsCassette() bool {
	return m.Drive == CassetteDrive
}

// Breakpoint reports that execution stopped at Addr.
type Breakpoint struct {
	Addr int
}

// Message is free status text.
type Message struct {
	Text string
}

// Expanded switches the wide-glyph display mode.
type Expanded struct {
	On bool
}

// Shutdown reports that the emulator stopped.
type Shutdown struct{}

// Unknown is an update whose kind this client does not know. It is carried
// so that callers can log it.
type Unknown struct {
	Cmd string
}

func (Poke) Kind() string       { return "poke" }
func (Motor) Kind() string      { return "motor" }
func (Breakpoint) Kind() string { return "breakpoint" }
func (Message) Kind() string    { return "message" }
func (Expanded) Kind() string   { return "expanded" }
func (Shutdown) Kind() string   { return "shutdown" }
func (u Unknown) Kind() string  { return u.Cmd }

func (Poke) isUpdate()       {}
func (Motor) isUpdate()      {}
func (Breakpoint) isUpdate() {}
func (Message) isUpdate()    {}
func (Expanded) isUpdate()   {}
func (Shutdown) isUpdate()   {}
func (Unknown) isUpdate()    {}

// wireUpdate is the JSON shape shared by every update kind. Pointers tell a
// missing field from a zero value.
type wireUpdate struct {
	Cmd  string  `json:"Cmd"`
	Addr *int    `json:"Addr,omitempty"`
	Data *int    `json:"Data,omitempty"`
	Msg  *string `json:"Msg,omitempty"`
}

type decodeFunc func(w wireUpdate) (Update, error)

// decoders is keyed by the Cmd discriminant. Kinds not listed decode to
// Unknown.
var decoders = map[string]decodeFunc{
	"poke": func(w wireUpdate) (Update, error) {
		if w.Addr == nil || w.Msg == nil {
			return nil, missing(w.Cmd, "Addr", "Msg")
		}
		data, err := messageBytes(*w.Msg)
		if err != nil {
			return nil, err
		}
		return Poke{Addr: *w.Addr, Data: data}, nil
	},
	"motor": func(w wireUpdate) (Update, error) {
		if w.Addr == nil || w.Data == nil {
			return nil, missing(w.Cmd, "Addr", "Data")
		}
		return Motor{Drive: *w.Addr, On: *w.Data != 0}, nil
	},
	"breakpoint": func(w wireUpdate) (Update, error) {
		if w.Addr == nil {
			return nil, missing(w.Cmd, "Addr")
		}
		if *w.Addr < 0 || *w.Addr > 0xFFFF {
			return nil, fmt.Errorf("%w: breakpoint address %d outside 0-FFFF", ErrMalformed, *w.Addr)
		}
		return Breakpoint{Addr: *w.Addr}, nil
	},
	"message": func(w wireUpdate) (Update, error) {
		if w.Msg == nil {
			return nil, missing(w.Cmd, "Msg")
		}
		return Message{Text: *w.Msg}, nil
	},
	"expanded": func(w wireUpdate) (Update, error) {
		if w.Data == nil {
			return nil, missing(w.Cmd, "Data")
		}
		return Expanded{On: *w.Data != 0}, nil
	},
	"shutdown": func(w wireUpdate) (Update, error) {
		return Shutdown{}, nil
	},
}

func missing(cmd string, fields ...string) error {
	return fmt.Errorf("%w: %q update requires %v", ErrMalformed, cmd, fields)
}

// messageBytes turns a poke string into bytes, one per character. The
// server encodes each byte as the character with that code point, so
// anything above U+00FF cannot be a glyph.
func messageBytes(msg string) ([]byte, error) {
	out := make([]byte, 0, len(msg))
	for _, r := range msg {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: poke character %U is not a byte", ErrMalformed, r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func decodeOne(raw json.RawMessage) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Cmd == "" {
		return nil, fmt.Errorf("%w: update has no Cmd", ErrMalformed)
	}

	decode, ok := decoders[w.Cmd]
	if !ok {
		return Unknown{Cmd: w.Cmd}, nil
	}
	return decode(w)
}

// DecodeUpdates parses one network message. The payload is either a single
// update object or an array of zero or more updates; the result keeps
// payload order. Any malformed element rejects the whole message.
func DecodeUpdates(payload []byte) ([]Update, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	if trimmed[0] != '[' {
		update, err := decodeOne(trimmed)
		if err != nil {
			return nil, err
		}
		return []Update{update}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	updates := make([]Update, 0, len(raws))
	for i, raw := range raws {
		update, err := decodeOne(raw)
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// EncodeUpdate returns the wire form of an update. The client never sends
// updates; this exists for test servers and traffic replay.
func EncodeUpdate(u Update) ([]byte, error) {
	w := wireUpdate{Cmd: u.Kind()}

	switch v := u.(type) {
	case Poke:
		msg := make([]rune, len(v.Data))
		for i, b := range v.Data {
			msg[i] = rune(b)
		}
		s := string(msg)
		w.Addr, w.Msg = &v.Addr, &s
	case Motor:
		data := boolInt(v.On)
		w.Addr, w.Data = &v.Drive, &data
	case Breakpoint:
		w.Addr = &v.Addr
	case Message:
		w.Msg = &v.Text
	case Expanded:
		data := boolInt(v.On)
		w.Data = &data
	case Shutdown, Unknown:
	default:
		return nil, fmt.Errorf("unsupported update type %T", u)
	}

	return json.Marshal(w)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
