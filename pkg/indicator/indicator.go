// Package indicator keeps the state shown around the machine display: drive
// motor lights and the status message banner.
package indicator

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Drives is the number of floppy drives with a motor light.
const Drives = 4

// Panel is the indicator state. It is display state only; nothing here
// feeds back to the machine.
type Panel struct {
	driveMotors   [Drives]bool
	cassetteMotor bool

	message   string
	messageAt time.Time

	// Motor updates for drives outside the panel are counted, not shown.
	ignoredDrives int

	mu sync.RWMutex
}

// NewPanel creates a panel with every light off.
func NewPanel() *Panel {
	return &Panel{}
}

// SetCassetteMotor turns the cassette light on or off.
func (p *Panel) SetCassetteMotor(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cassetteMotor = on
}

// SetDriveMotor turns a disk drive light on or off. Drives the panel has no
// light for are ignored.
func (p *Panel) SetDriveMotor(drive int, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if drive < 0 || drive >= Drives {
		p.ignoredDrives++
		return
	}
	p.driveMotors[drive] = on
}

// IgnoredDrives returns how many motor updates named a drive the panel has
// no light for.
func (p *Panel) IgnoredDrives() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.ignoredDrives
}

// ShowMessage replaces the status banner.
func (p *Panel) ShowMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.message = text
	p.messageAt = time.Now()
}

// CassetteMotor reports whether the cassette light is on.
func (p *Panel) CassetteMotor() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.cassetteMotor
}

// DriveMotor reports whether a drive light is on.
func (p *Panel) DriveMotor(drive int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if drive < 0 || drive >= Drives {
		return false
	}
	return p.driveMotors[drive]
}

// Message returns the current banner text and when it was set.
func (p *Panel) Message() (string, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.message, p.messageAt
}

// Lights renders the motor lights as a short status string, for example
// "D0:* D1:- D2:- D3:- CAS:-".
func (p *Panel) Lights() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var sb strings.Builder
	for drive, on := range p.driveMotors {
		fmt.Fprintf(&sb, "D%d:%s ", drive, light(on))
	}
	fmt.Fprintf(&sb, "CAS:%s", light(p.cassetteMotor))
	return sb.String()
}

func light(on bool) string {
	if on {
		return "*"
	}
	return "-"
}
