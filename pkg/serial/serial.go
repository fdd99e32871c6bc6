// Package serial carries the console protocol over a serial line, one JSON
// message per line.
package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ErrNotOpen is returned for I/O on a line that was never opened or has
// been closed.
var ErrNotOpen = errors.New("serial line is not open")

// maxLine bounds one JSON message. A full-screen poke batch is well below it.
const maxLine = 1 << 20

// pollInterval is how long a read blocks before the context is checked again.
const pollInterval = 200 * time.Millisecond

// SerialConfig defines the configuration for serial port communication
type SerialConfig struct {
	Port     string        `json:"port" yaml:"port"`
	BaudRate int           `json:"baud_rate" yaml:"baud_rate"`
	DataBits int           `json:"data_bits" yaml:"data_bits"`
	StopBits int           `json:"stop_bits" yaml:"stop_bits"`
	Parity   string        `json:"parity" yaml:"parity"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

var validBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

var validParity = []string{"none", "odd", "even", "mark", "space"}

// Validate checks if the serial configuration is valid
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	validBaud := false
	for _, rate := range validBaudRates {
		if c.BaudRate == rate {
			validBaud = true
			break
		}
	}
	if !validBaud {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}

	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("data bits must be between 5 and 8, got: %d", c.DataBits)
	}

	if c.StopBits < 1 || c.StopBits > 2 {
		return fmt.Errorf("stop bits must be 1 or 2, got: %d", c.StopBits)
	}

	validParityFound := false
	for _, p := range validParity {
		if c.Parity == p {
			validParityFound = true
			break
		}
	}
	if !validParityFound {
		return fmt.Errorf("invalid parity: %s", c.Parity)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// DefaultConfig returns the line settings used when a serial URL gives only
// a device path.
func DefaultConfig() SerialConfig {
	return SerialConfig{
		Port:     "/dev/ttyUSB0",
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  pollInterval,
	}
}

// ConfigFromURL builds a line configuration from a serial URL such as
// serial:///dev/ttyUSB0?baud=115200&parity=even. Unset options keep their
// defaults.
func ConfigFromURL(u *url.URL) (SerialConfig, error) {
	config := DefaultConfig()

	config.Port = u.Path
	if u.Opaque != "" {
		config.Port = u.Opaque
	}
	if u.Host != "" {
		// serial://COM3 puts the device in the host part.
		config.Port = u.Host + u.Path
	}

	query := u.Query()
	ints := map[string]*int{
		"baud":     &config.BaudRate,
		"databits": &config.DataBits,
		"stopbits": &config.StopBits,
	}
	for key, target := range ints {
		value := query.Get(key)
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return SerialConfig{}, fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		*target = n
	}
	if parity := query.Get("parity"); parity != "" {
		config.Parity = parity
	}

	if err := config.Validate(); err != nil {
		return SerialConfig{}, err
	}
	return config, nil
}

// Port is the part of an open serial device the transport needs.
// go.bug.st/serial ports satisfy it; tests use in-memory fakes.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(timeout time.Duration) error
}

// openPort opens the device with the given configuration
func openPort(config SerialConfig) (Port, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: convertStopBits(config.StopBits),
		Parity:   convertParity(config.Parity),
	}

	port, err := serial.Open(config.Port, mode)
	if err != nil {
		if !IsPortAvailable(config.Port) {
			err = fmt.Errorf("%w (not among the system's serial ports, see 'trs80term list ports')", err)
		}
		return nil, NewSerialError("open", config.Port, err)
	}

	return port, nil
}

// Transport frames protocol messages as newline-terminated JSON on a serial
// line. Read and Write may be called from different goroutines.
type Transport struct {
	port   Port
	name   string
	closed atomic.Bool

	// Read side, owned by the single reader
	pending []byte
	chunk   []byte

	writeMu sync.Mutex
}

// Open opens a serial device and wraps it in a Transport.
func Open(config SerialConfig) (*Transport, error) {
	port, err := openPort(config)
	if err != nil {
		return nil, err
	}
	return NewTransport(port, config.Port)
}

// NewTransport wraps an already open port. name is used in errors.
func NewTransport(port Port, name string) (*Transport, error) {
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, NewSerialError("set read timeout", name, err)
	}
	return &Transport{
		port:  port,
		name:  name,
		chunk: make([]byte, 4096),
	}, nil
}

// Read returns the next non-empty line without its terminator. It returns
// io.EOF once the transport has been closed.
func (t *Transport) Read(ctx context.Context) ([]byte, error) {
	for {
		if i := bytes.IndexByte(t.pending, '\n'); i >= 0 {
			line := bytes.TrimSpace(t.pending[:i])
			t.pending = t.pending[i+1:]
			if len(line) == 0 {
				continue
			}
			out := make([]byte, len(line))
			copy(out, line)
			return out, nil
		}

		if len(t.pending) > maxLine {
			return nil, NewSerialError("read", t.name, fmt.Errorf("line exceeds %d bytes", maxLine))
		}
		if t.closed.Load() {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := t.port.Read(t.chunk)
		if err != nil {
			if t.closed.Load() || errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, NewSerialError("read", t.name, err)
		}
		// A zero-length read is a poll timeout.
		t.pending = append(t.pending, t.chunk[:n]...)
	}
}

// Write sends one message followed by a newline.
func (t *Transport) Write(ctx context.Context, payload []byte) error {
	if t.closed.Load() {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for len(line) > 0 {
		n, err := t.port.Write(line)
		if err != nil {
			return NewSerialError("write", t.name, err)
		}
		line = line[n:]
	}
	return nil
}

// Close closes the underlying port. Closing twice returns ErrNotOpen.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrNotOpen
	}
	if err := t.port.Close(); err != nil {
		return NewSerialError("close", t.name, err)
	}
	return nil
}

// convertStopBits converts our stop bits format to go.bug.st/serial format
func convertStopBits(stopBits int) serial.StopBits {
	switch stopBits {
	case 1:
		return serial.OneStopBit
	case 2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

// convertParity converts our parity format to go.bug.st/serial format
func convertParity(parity string) serial.Parity {
	switch parity {
	case "none":
		return serial.NoParity
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// PortInfo contains information about a serial port
type PortInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// GetDetailedPortsList returns detailed information about available serial ports
func GetDetailedPortsList() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get ports list: %w", err)
	}

	portInfos := make([]PortInfo, 0, len(ports))
	for _, port := range ports {
		info := PortInfo{
			Name:        port.Name,
			Description: port.Product,
		}
		if port.IsUSB {
			info.VID = port.VID
			info.PID = port.PID
			info.SerialNumber = port.SerialNumber
		}
		portInfos = append(portInfos, info)
	}

	return portInfos, nil
}

// IsPortAvailable checks if a specific port is available
func IsPortAvailable(portName string) bool {
	ports, err := ListPorts()
	if err != nil {
		return false
	}

	for _, port := range ports {
		if port == portName {
			return true
		}
	}

	return false
}

// ListPorts returns a list of available serial ports on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get available ports: %w", err)
	}
	return ports, nil
}

// SerialError represents a serial port specific error
type SerialError struct {
	Operation string
	Port      string
	Cause     error
}

// Error implements the error interface
func (e *SerialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serial %s operation failed on port %s: %v", e.Operation, e.Port, e.Cause)
	}
	return fmt.Sprintf("serial %s operation failed on port %s", e.Operation, e.Port)
}

// Unwrap returns the underlying cause.
func (e *SerialError) Unwrap() error {
	return e.Cause
}

// NewSerialError creates a new serial error
func NewSerialError(operation, port string, cause error) *SerialError {
	return &SerialError{
		Operation: operation,
		Port:      port,
		Cause:     cause,
	}
}
