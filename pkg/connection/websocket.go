package connection

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// readLimit caps one inbound message. Full-screen batches are a few KiB.
const readLimit = 1 << 20

// WebSocketTransport is a Transport over one websocket. Every protocol
// message is one text frame.
type WebSocketTransport struct {
	conn *websocket.Conn
	url  string
}

// DialWebSocket opens a websocket to url.
func DialWebSocket(ctx context.Context, url string) (*WebSocketTransport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)
	return &WebSocketTransport{conn: conn, url: url}, nil
}

// NewWebSocketTransport wraps an established websocket, for example the
// server side of a test.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	conn.SetReadLimit(readLimit)
	return &WebSocketTransport{conn: conn}
}

// Read returns the payload of the next frame.
func (t *WebSocketTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write sends payload as one text frame.
func (t *WebSocketTransport) Write(ctx context.Context, payload []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, payload)
}

// Close performs a normal websocket close.
func (t *WebSocketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
