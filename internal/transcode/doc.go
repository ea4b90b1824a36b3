// Package transcode converts compressed audio sources into raw linear PCM
// by invoking an external ffmpeg process with a hard wall-clock timeout.
// Output goes to uniquely named temporary files owned by the caller.
package transcode
