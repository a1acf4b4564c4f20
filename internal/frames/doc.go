// Package frames samples grayscale frames from a local video file.
//
// Probe reads geometry, frame rate, and frame count with ffprobe. Open starts
// an ffmpeg decode that selects source positions 0, N, 2N, ... by
// presentation time, converts them to 8-bit grayscale, and streams raw pixels
// over a pipe; Reader.Next hands back one Frame per sample, stamped with the
// position it was decoded from. A sampled frame that fails to decode is
// skipped rather than replaced by its neighbour. Sample collects the whole sequence for callers that want
// a slice.
//
// Frames are immutable once returned and never persisted.
package frames
