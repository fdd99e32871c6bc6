package connection

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"trs80term/pkg/serial"
)

// socketPath is where the emulator serves its console websocket.
const socketPath = "/ws"

// Endpoint is a parsed server address.
type Endpoint struct {
	// Raw is the address as the user gave it.
	Raw string
	// URL is the websocket URL, or the serial URL for serial endpoints.
	URL string
	// Serial is set for serial:// endpoints.
	Serial *serial.SerialConfig
}

// IsSerial reports whether the endpoint is a serial line.
func (e Endpoint) IsSerial() bool {
	return e.Serial != nil
}

// HTTPBase returns the http(s) origin serving the media lists. Serial
// endpoints have none.
func (e Endpoint) HTTPBase() (string, error) {
	if e.IsSerial() {
		return "", fmt.Errorf("serial endpoint %s has no media server", e.Raw)
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

// Dialer returns a DialFunc that opens this endpoint.
func (e Endpoint) Dialer() DialFunc {
	if e.IsSerial() {
		config := *e.Serial
		return func(ctx context.Context) (Transport, error) {
			transport, err := serial.Open(config)
			if err != nil {
				return nil, err
			}
			return transport, nil
		}
	}
	return func(ctx context.Context) (Transport, error) {
		transport, err := DialWebSocket(ctx, e.URL)
		if err != nil {
			return nil, err
		}
		return transport, nil
	}
}

// ParseEndpoint accepts ws://host/ws, wss://…, http://host (the socket path
// is added), a bare host:port, or serial:///dev/tty…?baud=N.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("server address cannot be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid server address %q: %w", raw, err)
	}

	switch u.Scheme {
	case "serial":
		config, err := serial.ConfigFromURL(u)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid serial address %q: %w", raw, err)
		}
		return Endpoint{Raw: raw, URL: u.String(), Serial: &config}, nil
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return Endpoint{}, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}

	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("server address %q has no host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = socketPath
	}
	return Endpoint{Raw: raw, URL: u.String()}, nil
}
