// Package stream implements the audio relay sessions: timed file playback
// with format-aware pacing and transcoding, and bidirectional binary echo.
// Each connection is handled by one session that exclusively owns the
// channel and any transcoding artifact until it closes.
package stream
