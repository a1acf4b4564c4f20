// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result; helpers on Result and Stream
// expose the video geometry, frame rate, and frame count the frame sampler
// needs to plan its decode.
package ffprobe
