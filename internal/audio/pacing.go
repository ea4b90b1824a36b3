package audio

import (
	"strings"
	"time"
)

// Convention defaults applied when no container header is available.
const (
	DefaultSampleRate = 8000
	DefaultBitDepth   = 16
	DefaultChannels   = 1
)

// Plan describes the pacing of one playback session: how many bytes go out
// per chunk, how long to wait between chunks, and how many leading bytes of
// the source to skip before streaming raw samples.
type Plan struct {
	ChunkSizeBytes  int
	InterChunkDelay time.Duration
	HeaderSkipBytes int
}

// PacingParams holds the tunables of the pacing calculation.
type PacingParams struct {
	ChunkDuration time.Duration // target wall-clock duration per chunk
	MinDelay      time.Duration // floor for the inter-chunk delay
	DefaultRate   int           // sample rate used when neither header nor hint is available
}

// DefaultPacingParams returns the standard telephony pacing parameters:
// 20 ms chunks, 5 ms delay floor, 8000 Hz fallback rate.
func DefaultPacingParams() PacingParams {
	return PacingParams{
		ChunkDuration: 20 * time.Millisecond,
		MinDelay:      5 * time.Millisecond,
		DefaultRate:   DefaultSampleRate,
	}
}

// ComputePacing derives a Plan from the resolved audio properties. Resolution
// order for the sample rate: header-backed properties, then the filename hint,
// then the default rate. Bit depth and channel count fall back to 16-bit mono
// when no header is available. headerSkip is the number of container header
// bytes the caller wants omitted from the stream; it is passed through
// unchanged. The function is pure: identical inputs yield identical plans.
func (p PacingParams) ComputePacing(hintRate int, props *Properties, headerSkip int) Plan {
	rate := p.DefaultRate
	depth := DefaultBitDepth
	channels := DefaultChannels

	if props != nil && props.FromHeader && props.SampleRate > 0 {
		rate = props.SampleRate
		if props.BitDepth > 0 {
			depth = props.BitDepth
		}
		if props.Channels > 0 {
			channels = props.Channels
		}
	} else if hintRate > 0 {
		rate = hintRate
	}

	chunkSeconds := p.ChunkDuration.Seconds()
	chunkSize := int(float64(rate) * float64(depth) * float64(channels) * chunkSeconds / 8)
	if chunkSize < 1 {
		chunkSize = 1
	}

	delay := p.ChunkDuration
	if delay < p.MinDelay {
		delay = p.MinDelay
	}

	if headerSkip < 0 {
		headerSkip = 0
	}

	return Plan{
		ChunkSizeBytes:  chunkSize,
		InterChunkDelay: delay,
		HeaderSkipBytes: headerSkip,
	}
}

// RateHintFromName extracts a sample rate hint from a resource name by
// convention: a name containing "16000" selects 16000 Hz, "8000" selects
// 8000 Hz. Zero means no hint.
func RateHintFromName(name string) int {
	switch {
	case strings.Contains(name, "16000"):
		return 16000
	case strings.Contains(name, "8000"):
		return 8000
	default:
		return 0
	}
}
