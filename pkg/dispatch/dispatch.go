// Package dispatch routes decoded server updates to the display and the
// indicator panel.
package dispatch

import (
	"fmt"
	"log/slog"

	"trs80term/pkg/protocol"
)

// Screen receives display updates.
type Screen interface {
	ApplyPoke(start int, data []byte)
	SetExpanded(expanded bool)
}

// Indicators receives motor and status updates.
type Indicators interface {
	SetCassetteMotor(on bool)
	SetDriveMotor(drive int, on bool)
	ShowMessage(text string)
}

// Dispatcher applies update messages in arrival order.
type Dispatcher struct {
	screen     Screen
	indicators Indicators
	logger     *slog.Logger

	// Counters, read by the status line and tests
	messages int
	updates  int
	unknown  int
}

// New creates a dispatcher. A nil logger uses slog.Default().
func New(screen Screen, indicators Indicators, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		screen:     screen,
		indicators: indicators,
		logger:     logger,
	}
}

// Dispatch decodes one network message and applies each update in order. A
// malformed message is rejected as a whole and nothing in it is applied;
// the error wraps protocol.ErrMalformed.
func (d *Dispatcher) Dispatch(payload []byte) error {
	updates, err := protocol.DecodeUpdates(payload)
	if err != nil {
		return fmt.Errorf("decode updates: %w", err)
	}

	d.messages++
	for _, update := range updates {
		d.Apply(update)
	}
	return nil
}

// Apply routes a single decoded update.
func (d *Dispatcher) Apply(update protocol.Update) {
	d.updates++

	switch u := update.(type) {
	case protocol.Poke:
		d.screen.ApplyPoke(u.Addr, u.Data)
	case protocol.Motor:
		if u.IsCassette() {
			d.indicators.SetCassetteMotor(u.On)
		} else {
			d.indicators.SetDriveMotor(u.Drive, u.On)
		}
	case protocol.Breakpoint:
		d.indicators.ShowMessage(fmt.Sprintf("Breakpoint at %04X", u.Addr&0xFFFF))
	case protocol.Message:
		d.indicators.ShowMessage(u.Text)
	case protocol.Expanded:
		d.screen.SetExpanded(u.On)
	case protocol.Shutdown:
		d.indicators.ShowMessage("Machine shut down")
	case protocol.Unknown:
		d.unknown++
		d.logger.Warn("ignoring unknown update", "cmd", u.Cmd)
	default:
		d.unknown++
		d.logger.Warn("ignoring unhandled update type", "type", fmt.Sprintf("%T", update))
	}
}

// Stats returns how many messages and updates were applied, and how many
// updates had an unknown kind.
func (d *Dispatcher) Stats() (messages, updates, unknown int) {
	return d.messages, d.updates, d.unknown
}
