package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is a client-to-server request. The concrete types are Boot, Reset,
// Trace, AddBreakpoint, SetDisk0, SetDisk1, SetCassette, Press and Release.
type Command interface {
	Cmd() string
	isCommand()
}

// Boot powers the machine on and starts it running.
type Boot struct{}

// Reset presses the reset button.
type Reset struct{}

// Trace toggles instruction tracing on the server.
type Trace struct{}

// AddBreakpoint stops execution when the program counter reaches Addr.
type AddBreakpoint struct {
	Addr int
}

// SetDisk0 inserts a disk image into drive 0. An empty Filename ejects.
type SetDisk0 struct {
	Filename string
}

// SetDisk1 inserts a disk image into drive 1. An empty Filename ejects.
type SetDisk1 struct {
	Filename string
}

// SetCassette loads a cassette image. An empty Filename ejects.
type SetCassette struct {
	Filename string
}

// Press reports a key going down.
type Press struct {
	Key string
}

// Release reports a key going up.
type Release struct {
	Key string
}

func (Boot) Cmd() string          { return "boot" }
func (Reset) Cmd() string         { return "reset" }
func (Trace) Cmd() string         { return "tron" }
func (AddBreakpoint) Cmd() string { return "add_breakpoint" }
func (SetDisk0) Cmd() string      { return "set_disk0" }
func (SetDisk1) Cmd() string      { return "set_disk1" }
func (SetCassette) Cmd() string   { return "set_cassette" }
func (Press) Cmd() string         { return "press" }
func (Release) Cmd() string       { return "release" }

func (Boot) isCommand()          {}
func (Reset) isCommand()         {}
func (Trace) isCommand()         {}
func (AddBreakpoint) isCommand() {}
func (SetDisk0) isCommand()      {}
func (SetDisk1) isCommand()      {}
func (SetCassette) isCommand()   {}
func (Press) isCommand()         {}
func (Release) isCommand()       {}

type wireCommand struct {
	Cmd  string  `json:"Cmd"`
	Addr *int    `json:"Addr,omitempty"`
	Data *string `json:"Data,omitempty"`
}

// EncodeCommand returns the JSON wire form of a command. Fields a kind does
// not use are omitted; Data is always present for media and key commands,
// so an eject is sent as an empty string.
func EncodeCommand(c Command) ([]byte, error) {
	w := wireCommand{Cmd: c.Cmd()}

	switch v := c.(type) {
	case Boot, Reset, Trace:
	case AddBreakpoint:
		w.Addr = &v.Addr
	case SetDisk0:
		w.Data = &v.Filename
	case SetDisk1:
		w.Data = &v.Filename
	case SetCassette:
		w.Data = &v.Filename
	case Press:
		w.Data = &v.Key
	case Release:
		w.Data = &v.Key
	default:
		return nil, fmt.Errorf("unsupported command type %T", c)
	}

	return json.Marshal(w)
}

// DecodeCommand parses a command in wire form. The client does not receive
// commands; test servers and the traffic recorder use this.
func DecodeCommand(payload []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	data := func() (string, error) {
		if w.Data == nil {
			return "", fmt.Errorf("%w: %q command requires Data", ErrMalformed, w.Cmd)
		}
		return *w.Data, nil
	}

	switch w.Cmd {
	case "boot":
		return Boot{}, nil
	case "reset":
		return Reset{}, nil
	case "tron":
		return Trace{}, nil
	case "add_breakpoint":
		if w.Addr == nil {
			return nil, fmt.Errorf("%w: add_breakpoint requires Addr", ErrMalformed)
		}
		return AddBreakpoint{Addr: *w.Addr}, nil
	case "set_disk0", "set_disk1", "set_cassette", "press", "release":
		d, err := data()
		if err != nil {
			return nil, err
		}
		switch w.Cmd {
		case "set_disk0":
			return SetDisk0{Filename: d}, nil
		case "set_disk1":
			return SetDisk1{Filename: d}, nil
		case "set_cassette":
			return SetCassette{Filename: d}, nil
		case "press":
			return Press{Key: d}, nil
		default:
			return Release{Key: d}, nil
		}
	}

	return nil, fmt.Errorf("%w: unknown command %q", ErrMalformed, w.Cmd)
}
