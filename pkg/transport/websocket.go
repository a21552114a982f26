package transport

import (
	"context"

	"nhooyr.io/websocket"
)

// WebSocketTransport exchanges envelopes as JSON text frames.
type WebSocketTransport struct {
	pipe
	conn *websocket.Conn
	ctx  context.Context
}

// NewWebSocketTransport wraps an accepted connection. ctx bounds every read
// and write on it. Frames larger than MaxFrameBytes fail the connection.
func NewWebSocketTransport(ctx context.Context, conn *websocket.Conn) *WebSocketTransport {
	conn.SetReadLimit(MaxFrameBytes)
	t := &WebSocketTransport{conn: conn, ctx: ctx}
	t.init(16)
	go t.readFrames()
	return t
}

func (t *WebSocketTransport) readFrames() {
	defer close(t.in)

	for {
		_, data, err := t.conn.Read(t.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				t.deliver(Envelope{Kind: KindError, Err: err})
			}
			return
		}
		if !t.deliver(decodeEnvelope(data)) {
			return
		}
	}
}

// Write sends data as one text frame. Safe for concurrent use.
func (t *WebSocketTransport) Write(data []byte) error {
	return t.write(func() error {
		return t.conn.Write(t.ctx, websocket.MessageText, data)
	})
}

// Close sends a normal close frame. Safe to call multiple times.
func (t *WebSocketTransport) Close() error {
	t.shutdown(func() {
		t.conn.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}
