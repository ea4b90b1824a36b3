package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khan2a/agent-conversation/internal/audio"
	"github.com/khan2a/agent-conversation/internal/transcode"
)

// State represents the lifecycle stage of a playback session
type State int

const (
	StateValidating State = iota
	StateTranscoding
	StateStreaming
	StateDraining
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateTranscoding:
		return "transcoding"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	default:
		return "closed"
	}
}

// Session validation errors. Each maps to a distinct close code on the wire.
var (
	ErrPathViolation     = errors.New("resource path escapes the audio root")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// directExtensions are containers streamed as-is: WAV with its fixed header
// skipped, raw PCM verbatim.
var directExtensions = map[string]int{
	".wav": audio.HeaderSize,
	".raw": 0,
	".pcm": 0,
}

// transcodeExtensions are compressed formats decoded to raw PCM before streaming.
var transcodeExtensions = map[string]bool{
	".mp3":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".opus": true,
}

// PlaybackConfig carries the dependencies of a playback session.
type PlaybackConfig struct {
	AudioRoot  string
	Pacing     audio.PacingParams
	Transcoder *transcode.Transcoder
}

// PlaybackSession streams one audio resource over one connection at the
// wall-clock rate of the encoded audio. It owns the connection and any
// transcoding artifact exclusively for its lifetime.
type PlaybackSession struct {
	ID       string
	conn     PlaybackConn
	cfg      PlaybackConfig
	logger   *slog.Logger
	resource string

	state         State
	bytesSent     int64
	chunksSent    int64
	artifact      string
	transcoded    bool
	transcodeTime time.Duration
}

// NewPlaybackSession creates a playback session for the named resource.
func NewPlaybackSession(conn PlaybackConn, resource string, cfg PlaybackConfig, logger *slog.Logger) *PlaybackSession {
	id := uuid.NewString()
	return &PlaybackSession{
		ID:       id,
		conn:     conn,
		cfg:      cfg,
		logger:   logger.With(slog.String("session_id", id), slog.String("resource", resource)),
		resource: resource,
		state:    StateValidating,
	}
}

// State returns the session's current lifecycle stage.
func (s *PlaybackSession) State() State { return s.state }

// BytesSent returns the number of audio bytes transmitted so far.
func (s *PlaybackSession) BytesSent() int64 { return s.bytesSent }

// ChunksSent returns the number of chunks transmitted so far.
func (s *PlaybackSession) ChunksSent() int64 { return s.chunksSent }

// Transcoded reports whether the session ran the transcoding pipeline.
func (s *PlaybackSession) Transcoded() bool { return s.transcoded }

// TranscodeTime returns how long the transcoding step took, zero if it
// never ran.
func (s *PlaybackSession) TranscodeTime() time.Duration { return s.transcodeTime }

// Run drives the session end-to-end: validate the resource, transcode if the
// format requires it, then stream paced chunks until the source is exhausted,
// the peer disconnects, or an error occurs. Cleanup of the transcoding
// artifact and closing of the connection happen on every exit path.
func (s *PlaybackSession) Run(ctx context.Context) error {
	defer s.drain()

	s.setState(StateValidating)
	sourcePath, headerSkip, direct, err := s.validate()
	if err != nil {
		s.closeWithError(err)
		return err
	}

	hint := audio.RateHintFromName(s.resource)
	var plan audio.Plan

	if direct {
		props, perr := audio.ProbeFile(sourcePath)
		if perr != nil {
			s.conn.Close(CloseInternalError, "failed to read resource")
			return perr
		}
		if props != nil && hint > 0 && props.SampleRate != hint {
			// Header wins for pacing; the name is only a convention.
			s.logger.Warn("Filename rate hint disagrees with container header",
				slog.Int("hint_rate", hint),
				slog.Int("header_rate", props.SampleRate),
			)
		}
		plan = s.cfg.Pacing.ComputePacing(hint, props, headerSkip)
	} else {
		s.setState(StateTranscoding)
		targetRate := s.cfg.Pacing.DefaultRate
		if hint > 0 {
			targetRate = hint
		}

		transcodeStart := time.Now()
		outputPath, terr := s.cfg.Transcoder.Transcode(ctx, sourcePath, targetRate)
		s.transcodeTime = time.Since(transcodeStart)
		if terr != nil {
			s.closeWithError(terr)
			return terr
		}
		s.artifact = outputPath
		s.transcoded = true
		sourcePath = outputPath
		plan = s.cfg.Pacing.ComputePacing(targetRate, nil, 0)
	}

	s.setState(StateStreaming)
	s.logger.Info("Streaming started",
		slog.Int("chunk_size_bytes", plan.ChunkSizeBytes),
		slog.Duration("inter_chunk_delay", plan.InterChunkDelay),
		slog.Int("header_skip_bytes", plan.HeaderSkipBytes),
		slog.Bool("transcoded", s.transcoded),
	)

	if err := s.streamFile(ctx, sourcePath, plan); err != nil {
		s.conn.Close(CloseInternalError, "stream error")
		return err
	}

	s.logger.Info("Streaming finished",
		slog.Int64("bytes_sent", s.bytesSent),
		slog.Int64("chunks_sent", s.chunksSent),
	)
	return nil
}

// validate resolves the requested resource to a path confined to the audio
// root and classifies it as direct-streamable or transcode-first. The path
// containment check is a security boundary: nothing outside the root is ever
// opened.
func (s *PlaybackSession) validate() (path string, headerSkip int, direct bool, err error) {
	name := strings.TrimSpace(s.resource)
	if name == "" {
		return "", 0, false, ErrPathViolation
	}

	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) {
		return "", 0, false, ErrPathViolation
	}

	root, rerr := filepath.Abs(s.cfg.AudioRoot)
	if rerr != nil {
		return "", 0, false, fmt.Errorf("failed to resolve audio root: %w", rerr)
	}

	full := filepath.Join(root, cleaned)
	rel, rerr := filepath.Rel(root, full)
	if rerr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", 0, false, ErrPathViolation
	}

	ext := strings.ToLower(filepath.Ext(cleaned))
	skip, isDirect := directExtensions[ext]
	if !isDirect && !transcodeExtensions[ext] {
		return "", 0, false, ErrUnsupportedFormat
	}

	// The lexical check above cannot see symlinks. Resolve both ends and
	// re-check containment so a link placed inside the root cannot reach a
	// file outside it.
	resolvedRoot, rerr := filepath.EvalSymlinks(root)
	if rerr != nil {
		return "", 0, false, fmt.Errorf("failed to resolve audio root: %w", rerr)
	}
	resolved, serr := filepath.EvalSymlinks(full)
	if serr != nil {
		return "", 0, false, ErrResourceNotFound
	}
	rel, rerr = filepath.Rel(resolvedRoot, resolved)
	if rerr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", 0, false, ErrPathViolation
	}

	info, serr := os.Stat(resolved)
	if serr != nil || info.IsDir() {
		return "", 0, false, ErrResourceNotFound
	}

	return resolved, skip, isDirect, nil
}

// streamFile sends the file content as paced binary chunks. Per-iteration
// order: poll for a peer disconnect, read one chunk, send it, sleep. That
// ordering bounds post-disconnect work to a single chunk.
func (s *PlaybackSession) streamFile(ctx context.Context, path string, plan audio.Plan) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open stream source: %w", err)
	}
	defer f.Close()

	if plan.HeaderSkipBytes > 0 {
		if _, err := f.Seek(int64(plan.HeaderSkipBytes), io.SeekStart); err != nil {
			return fmt.Errorf("failed to skip container header: %w", err)
		}
	}

	buf := make([]byte, plan.ChunkSizeBytes)
	timer := time.NewTimer(plan.InterChunkDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		if s.conn.PollDisconnect(0) {
			s.logger.Info("Peer disconnected during playback",
				slog.Int64("bytes_sent", s.bytesSent),
			)
			return nil
		}

		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			if serr := s.conn.SendBinary(buf[:n]); serr != nil {
				return fmt.Errorf("mid-stream send failed: %w", serr)
			}
			s.bytesSent += int64(n)
			s.chunksSent++
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return nil // source exhausted
			}
			return fmt.Errorf("mid-stream read failed: %w", rerr)
		}

		timer.Reset(plan.InterChunkDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// drain releases the transcoding artifact and closes the channel. It runs on
// every exit path and is idempotent.
func (s *PlaybackSession) drain() {
	s.setState(StateDraining)

	if s.artifact != "" {
		if err := os.Remove(s.artifact); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to delete transcode artifact",
				slog.String("artifact", s.artifact),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Debug("Transcode artifact deleted", slog.String("artifact", s.artifact))
		}
		s.artifact = ""
	}

	s.conn.Close(CloseNormal, "playback complete")
	s.setState(StateClosed)
}

// closeWithError closes the channel with the distinct code for the failure.
// Failures never produce a text payload on a streaming channel.
func (s *PlaybackSession) closeWithError(err error) {
	var tErr *transcode.Error

	switch {
	case errors.Is(err, ErrPathViolation):
		s.conn.Close(CloseInvalidPath, "invalid path")
	case errors.Is(err, ErrResourceNotFound):
		s.conn.Close(CloseNotFound, "resource not found")
	case errors.Is(err, ErrUnsupportedFormat):
		s.conn.Close(CloseUnsupportedFormat, "unsupported format")
	case errors.As(err, &tErr):
		s.conn.Close(CloseTranscodeFailed, "transcode failed")
	default:
		s.conn.Close(CloseInternalError, "internal error")
	}

	s.logger.Warn("Playback session rejected", slog.String("error", err.Error()))
}

func (s *PlaybackSession) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug("Session state changed",
		slog.String("from", s.state.String()),
		slog.String("to", state.String()),
	)
	s.state = state
}
