// Package audio handles audio format inspection and playback pacing.
// It parses PCM WAV container headers into audio properties and derives
// per-session pacing plans (chunk size, inter-chunk delay, header skip)
// from those properties or from filename convention hints.
package audio
