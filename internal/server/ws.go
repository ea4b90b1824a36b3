package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khan2a/agent-conversation/internal/stream"
)

// wsConn adapts a gorilla websocket connection to the stream session
// interfaces. Gorilla permits one concurrent reader and one concurrent
// writer; sessions are single-goroutine and the playback watcher only reads,
// so no extra locking is needed beyond the close guard.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
	done      chan struct{} // closed when the peer goes away; playback mode only
}

// newEchoConn wraps a connection for an echo session, which reads inbound
// frames itself via Receive.
func newEchoConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

// newPlaybackConn wraps a connection for a playback session. A watcher
// goroutine drains inbound frames until the peer goes away, turning the
// connection's read side into a disconnect signal the send loop can poll.
func newPlaybackConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	c := &wsConn{ws: ws, writeTimeout: writeTimeout, done: make(chan struct{})}
	go c.watchPeer()
	return c
}

func (c *wsConn) watchPeer() {
	defer close(c.done)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
		// Inbound frames during playback are not part of the wire contract.
	}
}

func (c *wsConn) Receive() (stream.FrameType, []byte, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, nil, err
	}

	switch messageType {
	case websocket.BinaryMessage:
		return stream.FrameBinary, data, nil
	case websocket.TextMessage:
		return stream.FrameText, data, nil
	default:
		return stream.FrameOther, data, nil
	}
}

func (c *wsConn) SendBinary(data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) SendText(msg string) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

// Close sends a close frame with the given code and tears the connection
// down. Only the first call takes effect.
func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(c.writeTimeout)
		message := websocket.FormatCloseMessage(code, reason)
		c.ws.WriteControl(websocket.CloseMessage, message, deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// PollDisconnect reports whether the peer has gone away, waiting at most
// timeout. A zero or negative timeout never blocks.
func (c *wsConn) PollDisconnect(timeout time.Duration) bool {
	if c.done == nil {
		return false
	}

	if timeout <= 0 {
		select {
		case <-c.done:
			return true
		default:
			return false
		}
	}

	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
