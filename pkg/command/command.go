// Package command turns user intents into protocol commands for the
// emulator server.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trs80term/pkg/keymap"
	"trs80term/pkg/protocol"
)

var (
	// ErrInvalidAddress is returned for breakpoint text that is not a
	// 16-bit hex address.
	ErrInvalidAddress = errors.New("invalid breakpoint address")

	// ErrInvalidDrive is returned for a disk drive other than 0 or 1.
	ErrInvalidDrive = errors.New("invalid disk drive")
)

// Eject is the media selection that empties a drive.
const Eject = ""

// placeholders are picker entries that mean "no media".
var placeholders = map[string]bool{
	"-":       true,
	"(none)":  true,
	"(eject)": true,
}

// Sender delivers a command to the server. connection.Manager implements it;
// sends on a closed connection are dropped there.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Encoder builds commands and hands them to a Sender.
type Encoder struct {
	sender Sender
}

// NewEncoder creates an encoder that sends through sender.
func NewEncoder(sender Sender) *Encoder {
	return &Encoder{sender: sender}
}

// Boot powers the machine on.
func (e *Encoder) Boot() error {
	return e.sender.Send(protocol.Boot{})
}

// Reset presses the reset button.
func (e *Encoder) Reset() error {
	return e.sender.Send(protocol.Reset{})
}

// Trace toggles instruction tracing.
func (e *Encoder) Trace() error {
	return e.sender.Send(protocol.Trace{})
}

// AddBreakpoint parses text as a hex address and asks the server to stop
// there. Invalid text sends nothing.
func (e *Encoder) AddBreakpoint(text string) error {
	addr, err := ParseAddress(text)
	if err != nil {
		return err
	}
	return e.sender.Send(protocol.AddBreakpoint{Addr: addr})
}

// SetDisk inserts filename into drive 0 or 1. An empty or placeholder name
// ejects.
func (e *Encoder) SetDisk(drive int, filename string) error {
	filename = MediaSelection(filename)

	switch drive {
	case 0:
		return e.sender.Send(protocol.SetDisk0{Filename: filename})
	case 1:
		return e.sender.Send(protocol.SetDisk1{Filename: filename})
	default:
		return fmt.Errorf("%w: %d", ErrInvalidDrive, drive)
	}
}

// SetCassette loads filename into the cassette player. An empty or
// placeholder name ejects.
func (e *Encoder) SetCassette(filename string) error {
	return e.sender.Send(protocol.SetCassette{Filename: MediaSelection(filename)})
}

// Press reports token going down. The empty token sends nothing.
func (e *Encoder) Press(token keymap.Token) error {
	if token.IsEmpty() {
		return nil
	}
	return e.sender.Send(protocol.Press{Key: string(token)})
}

// Release reports token going up. The empty token sends nothing.
func (e *Encoder) Release(token keymap.Token) error {
	if token.IsEmpty() {
		return nil
	}
	return e.sender.Send(protocol.Release{Key: string(token)})
}

// Tap sends a press followed by a release. Terminals deliver no key-up
// events, so every keystroke is sent this way.
func (e *Encoder) Tap(token keymap.Token) error {
	if err := e.Press(token); err != nil {
		return err
	}
	return e.Release(token)
}

// ParseAddress parses a 16-bit hex address. Surrounding whitespace and a
// 0x or $ prefix are accepted.
func ParseAddress(text string) (int, error) {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	case strings.HasPrefix(s, "$"):
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}

	addr, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}
	return int(addr), nil
}

// MediaSelection maps a picker choice to the filename sent to the server.
// Placeholders become Eject.
func MediaSelection(choice string) string {
	choice = strings.TrimSpace(choice)
	if placeholders[choice] {
		return Eject
	}
	return choice
}
