package stream

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// echoRejection is the reply sent for a text frame on the echo path. The
// connection stays open; only binary frames are relayed.
const echoRejection = "Error: Only binary audio data is supported."

// EchoSession relays every inbound binary frame back to the peer verbatim.
// Text frames get a single rejection message, other frames are ignored, and
// the session ends cleanly when the peer goes away.
type EchoSession struct {
	ID     string
	conn   EchoConn
	logger *slog.Logger

	framesEchoed  int64
	bytesEchoed   int64
	textsRejected int64
}

// NewEchoSession creates an echo session on the given connection.
func NewEchoSession(conn EchoConn, logger *slog.Logger) *EchoSession {
	id := uuid.NewString()
	return &EchoSession{
		ID:     id,
		conn:   conn,
		logger: logger.With(slog.String("session_id", id)),
	}
}

// FramesEchoed returns the number of binary frames relayed so far.
func (s *EchoSession) FramesEchoed() int64 { return s.framesEchoed }

// BytesEchoed returns the number of binary bytes relayed so far.
func (s *EchoSession) BytesEchoed() int64 { return s.bytesEchoed }

// TextsRejected returns the number of text frames answered with a rejection.
func (s *EchoSession) TextsRejected() int64 { return s.textsRejected }

// Run loops until the peer disconnects or a receive fails. Both endings are
// normal termination, never surfaced as errors.
func (s *EchoSession) Run(ctx context.Context) error {
	s.logger.Info("Echo session started")

	// Receive blocks with no deadline, so an idle session would never see a
	// cancelled context. A watcher closes the connection on shutdown, which
	// fails the pending read.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close(CloseNormal, "server shutting down")
		case <-watchDone:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.conn.Close(CloseNormal, "server shutting down")
			return nil
		default:
		}

		frameType, data, err := s.conn.Receive()
		if err != nil {
			s.logger.Info("Echo session ended",
				slog.Int64("frames_echoed", s.framesEchoed),
				slog.Int64("bytes_echoed", s.bytesEchoed),
			)
			return nil
		}

		switch frameType {
		case FrameBinary:
			if err := s.conn.SendBinary(data); err != nil {
				s.logger.Debug("Echo send failed, peer gone", slog.String("error", err.Error()))
				return nil
			}
			s.framesEchoed++
			s.bytesEchoed += int64(len(data))
		case FrameText:
			s.textsRejected++
			s.logger.Debug("Rejected text frame on echo channel")
			if err := s.conn.SendText(echoRejection); err != nil {
				return nil
			}
		default:
			// Control and unknown frames are ignored without ending the loop.
		}
	}
}
