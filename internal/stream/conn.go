package stream

import "time"

// FrameType identifies the kind of frame received from a peer.
type FrameType int

const (
	// FrameBinary is a binary data frame.
	FrameBinary FrameType = iota + 1
	// FrameText is a text frame.
	FrameText
	// FrameOther is any other frame kind (ping, pong, unexpected control data).
	FrameOther
)

// Close codes sent when a session terminates. Codes above the standard range
// give the peer a distinct, machine-readable reason without ever putting a
// text error payload on a streaming channel.
const (
	CloseNormal            = 1000
	CloseInternalError     = 1011
	CloseInvalidPath       = 4400
	CloseNotFound          = 4404
	CloseUnsupportedFormat = 4415
	CloseTranscodeFailed   = 4500
)

// Conn is the established bidirectional channel handed to a session by the
// connection lifecycle layer. The session owns the connection exclusively for
// its lifetime.
type Conn interface {
	// SendBinary transmits one binary frame.
	SendBinary(data []byte) error
	// SendText transmits one text frame. Only the echo path ever uses it.
	SendText(msg string) error
	// Close sends a close frame with the given code and reason and tears the
	// connection down. Safe to call more than once.
	Close(code int, reason string) error
}

// PlaybackConn is the channel required by a playback session: outbound frames
// plus a non-blocking view of peer liveness.
type PlaybackConn interface {
	Conn
	// PollDisconnect reports whether the peer has gone away. A zero or
	// negative timeout must not block.
	PollDisconnect(timeout time.Duration) bool
}

// EchoConn is the channel required by an echo session: outbound frames plus
// inbound frame delivery.
type EchoConn interface {
	Conn
	// Receive blocks until the next frame arrives or the connection fails.
	Receive() (FrameType, []byte, error)
}
