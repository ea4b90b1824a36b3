package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies transcoding failures.
type ErrorKind int

const (
	// KindTimeout means the encoder exceeded the wall-clock timeout and was killed.
	KindTimeout ErrorKind = iota
	// KindProcessFailed means the encoder exited with a nonzero status.
	KindProcessFailed
	// KindEmptyOutput means the encoder reported success but produced no output.
	KindEmptyOutput
)

// Error is a typed transcoding failure carrying the encoder's diagnostic output.
type Error struct {
	Kind   ErrorKind
	Source string
	Output string // captured stderr, trimmed
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("transcode of %s timed out", e.Source)
	case KindEmptyOutput:
		return fmt.Sprintf("transcode of %s produced empty output", e.Source)
	default:
		if e.Output != "" {
			return fmt.Sprintf("transcode of %s failed: %s", e.Source, e.Output)
		}
		return fmt.Sprintf("transcode of %s failed: %v", e.Source, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transcoder converts compressed audio files into raw 16-bit signed
// little-endian mono PCM by driving an external ffmpeg process.
type Transcoder struct {
	ffmpegPath string
	timeout    time.Duration
	tempDir    string
	logger     *slog.Logger
}

// New creates a Transcoder. An empty tempDir selects the system temp
// directory; an empty ffmpegPath selects "ffmpeg" from PATH.
func New(ffmpegPath string, timeout time.Duration, tempDir string, logger *slog.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		timeout:    timeout,
		tempDir:    tempDir,
		logger:     logger,
	}
}

// Transcode converts sourcePath into raw s16le mono PCM at targetRate and
// returns the path of the temporary output file. The output name embeds the
// source identity and target rate plus a unique suffix, so concurrent
// transcodes of the same source never collide. The caller owns the returned
// artifact and is responsible for deleting it; on error no artifact remains.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath string, targetRate int) (string, error) {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	pattern := fmt.Sprintf("%s_%dhz_*.pcm", base, targetRate)

	out, err := os.CreateTemp(t.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create transcode output file: %w", err)
	}
	outputPath := out.Name()
	out.Close()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", sourcePath,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(targetRate),
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		os.Remove(outputPath)

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.logger.Error("Transcode timed out",
				slog.String("source", sourcePath),
				slog.Duration("timeout", t.timeout),
			)
			return "", &Error{Kind: KindTimeout, Source: sourcePath, Err: runErr}
		}

		if ctx.Err() != nil {
			// The caller cancelled (e.g. shutdown); the encoder was killed, it
			// did not fail.
			t.logger.Info("Transcode cancelled", slog.String("source", sourcePath))
			return "", ctx.Err()
		}

		diag := strings.TrimSpace(stderr.String())
		t.logger.Error("Transcode process failed",
			slog.String("source", sourcePath),
			slog.String("stderr", diag),
		)
		return "", &Error{Kind: KindProcessFailed, Source: sourcePath, Output: diag, Err: runErr}
	}

	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() == 0 {
		os.Remove(outputPath)
		t.logger.Error("Transcode produced empty output",
			slog.String("source", sourcePath),
			slog.String("output", outputPath),
		)
		return "", &Error{Kind: KindEmptyOutput, Source: sourcePath, Err: statErr}
	}

	t.logger.Info("Transcode complete",
		slog.String("source", sourcePath),
		slog.String("output", outputPath),
		slog.Int("target_rate", targetRate),
		slog.Int64("output_bytes", info.Size()),
		slog.Duration("elapsed", elapsed),
	)

	return outputPath, nil
}
