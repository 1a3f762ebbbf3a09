package link

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsStream adapts a websocket connection to the ordered byte stream
// contract: binary messages are the chunks, a normal close is
// end-of-stream. Reads and writes must each stay on a single goroutine.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader
}

// DialStream connects to a websocket receiver and returns it as a byte
// stream transport.
func DialStream(ctx context.Context, url string) (io.ReadWriteCloser, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	return &wsStream{conn: conn}, nil
}

// UpgradeStream upgrades an incoming HTTP request to a websocket byte
// stream, for the receiver side of the link.
func UpgradeStream(w http.ResponseWriter, r *http.Request) (io.ReadWriteCloser, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrading connection: %w", err)
	}

	return &wsStream{conn: conn}, nil
}

// Read returns bytes from the current binary message, moving to the next
// message when one is exhausted. A normal websocket close reads as io.EOF.
func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			msgType, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

// Write sends p as one binary message.
func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal close message so the peer reads end-of-stream, then
// closes the underlying connection.
func (s *wsStream) Close() error {
	deadline := time.Now().Add(time.Second)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
