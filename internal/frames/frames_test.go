package frames_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"veritas/internal/frames"
	"veritas/internal/testsupport"
)

func TestRawReaderStampsIndicesAndDropsTruncatedFrame(t *testing.T) {
	// Two complete 3x2 frames followed by a partial one.
	data := append(bytes.Repeat([]byte{10}, 6), bytes.Repeat([]byte{20}, 6)...)
	data = append(data, 1, 2, 3)

	reader := frames.NewRawReader(bytes.NewReader(data), 3, 2, 15, 30, 0)
	var got []frames.Frame
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, frame)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[1].Index != 15 || got[1].Timestamp != 500*time.Millisecond {
		t.Fatalf("unexpected second frame stamp: index=%d ts=%v", got[1].Index, got[1].Timestamp)
	}
	if got[0].At(2, 1) != 10 || got[1].At(0, 0) != 20 {
		t.Fatalf("unexpected pixel values")
	}
	if &got[0].Pix[0] == &got[1].Pix[0] {
		t.Fatal("frames must not share pixel buffers")
	}
}

func TestRawReaderHonoursLimit(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 4*5)
	reader := frames.NewRawReader(bytes.NewReader(data), 2, 2, 1, 0, 2)
	for i := 0; i < 2; i++ {
		if _, err := reader.Next(); err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
	}
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after limit, got %v", err)
	}
}

func TestSampleCount(t *testing.T) {
	tests := []struct {
		total  int64
		stride int
		want   int64
	}{
		{0, 30, 0},
		{1, 30, 1},
		{30, 30, 1},
		{31, 30, 2},
		{300, 30, 10},
		{5, 1, 5},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := frames.SampleCount(tt.total, tt.stride); got != tt.want {
			t.Errorf("SampleCount(%d, %d) = %d, want %d", tt.total, tt.stride, got, tt.want)
		}
	}
}

func TestNewValidatesBufferSize(t *testing.T) {
	if _, err := frames.New(2, 2, make([]uint8, 3)); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, err := frames.New(0, 2, nil); err == nil {
		t.Fatal("expected dimension error")
	}
	if _, err := frames.New(2, 2, make([]uint8, 4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSampleMissingFileIsMediaOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.mp4")
	_, err := frames.Sample(context.Background(), path, 30)
	var openErr *frames.MediaOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected MediaOpenError, got %v", err)
	}
	if openErr.Path != path {
		t.Fatalf("unexpected path in error: %q", openErr.Path)
	}
}

func TestOpenRejectsInvalidStride(t *testing.T) {
	_, err := frames.Open(context.Background(), "clip.mp4", frames.Options{Stride: 0})
	if !errors.Is(err, frames.ErrInvalidStride) {
		t.Fatalf("expected ErrInvalidStride, got %v", err)
	}
}

const probeScript = `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":4,"height":6,"avg_frame_rate":"30/1","nb_frames":"%s"}],"format":{"duration":"3.0"}}
JSON
`

func writeProbe(t *testing.T, dir, frameCount string) string {
	t.Helper()
	body := []byte(probeScript)
	body = bytes.Replace(body, []byte("%s"), []byte(frameCount), 1)
	return testsupport.WriteScript(t, dir, "ffprobe", string(body))
}

func TestSamplerDecodesStubbedStream(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	probe := writeProbe(t, dir, "90")
	// 3 frames of 4x6 plus a truncated tail.
	ffmpeg := testsupport.WriteScript(t, dir, "ffmpeg", `#!/bin/sh
for n in 0 1 2; do
  echo "[Parsed_showinfo_1 @ 0x55d1] [info] n: $n pts: $n pts_time:$n duration:1" >&2
done
echo "[info] Output #0, rawvideo, to 'pipe:1':" >&2
head -c 80 /dev/zero | tr '\000' 'A'
`)

	sampler := frames.NewSampler(ffmpeg, probe, nil)
	got, err := sampler.Sample(context.Background(), video, 30)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	for i, frame := range got {
		if frame.Index != int64(i*30) {
			t.Fatalf("frame %d index = %d", i, frame.Index)
		}
		if frame.Timestamp != time.Duration(i)*time.Second {
			t.Fatalf("frame %d timestamp = %v", i, frame.Timestamp)
		}
		if frame.Width != 4 || frame.Height != 6 || frame.Pix[0] != 'A' {
			t.Fatalf("frame %d unexpected content", i)
		}
	}
}

func TestSamplerZeroFramesReturnsEmpty(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	video := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	probe := writeProbe(t, dir, "0")
	ffmpeg := testsupport.WriteScript(t, dir, "ffmpeg", "#!/bin/sh\nexit 1\n")

	got, err := frames.NewSampler(ffmpeg, probe, nil).Sample(context.Background(), video, 30)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty sequence, got %d frames", len(got))
	}
}

func TestSamplerDecoderFailureIsMediaOpenError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	video := filepath.Join(dir, "broken.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	probe := writeProbe(t, dir, "60")
	ffmpeg := testsupport.WriteScript(t, dir, "ffmpeg", "#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n")

	_, err := frames.NewSampler(ffmpeg, probe, nil).Sample(context.Background(), video, 30)
	var openErr *frames.MediaOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected MediaOpenError, got %v", err)
	}
}

func TestProbeWithoutVideoStream(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.m4a")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	probe := testsupport.WriteScript(t, dir, "ffprobe", "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"audio\"}],\"format\":{}}'\n")

	_, err := frames.Probe(context.Background(), probe, audio)
	if !errors.Is(err, frames.ErrNoVideoStream) {
		t.Fatalf("expected ErrNoVideoStream, got %v", err)
	}
}

func TestRawReaderStampsFromFrameTimes(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 2*2*3)
	times := &sliceTimes{values: []float64{0.5, 1.5, 3.5}}

	reader := frames.NewRawReader(bytes.NewReader(data), 2, 2, 30, 30, 0).WithTimes(times, 0.5)
	want := []int64{0, 30, 90}
	for i, index := range want {
		frame, err := reader.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if frame.Index != index {
			t.Fatalf("frame %d index = %d, want %d", i, frame.Index, index)
		}
		if frame.Timestamp != time.Duration(index)*time.Second/30 {
			t.Fatalf("frame %d timestamp = %v", i, frame.Timestamp)
		}
	}
}

func TestRawReaderRequiresFrameTimes(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 2*2*2)
	reader := frames.NewRawReader(bytes.NewReader(data), 2, 2, 30, 30, 0).WithTimes(&sliceTimes{values: []float64{0}}, 0)
	if _, err := reader.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := reader.Next(); !errors.Is(err, frames.ErrMissingFrameTime) {
		t.Fatalf("expected ErrMissingFrameTime, got %v", err)
	}
}

type sliceTimes struct {
	values []float64
}

func (s *sliceTimes) Next() (float64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, true
}

func TestSamplerSkipsUndecodableFrame(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	tests := []struct {
		name      string
		startTime string
		times     string
		origin    string
	}{
		{name: "zero start", startTime: "0.000000", times: "0 2", origin: "0"},
		{name: "offset start", startTime: "0.500000", times: "0.5 2.5", origin: "0.5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			video := filepath.Join(dir, "clip.mp4")
			if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
				t.Fatalf("write video: %v", err)
			}
			probe := testsupport.WriteScript(t, dir, "ffprobe", `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":4,"height":6,"avg_frame_rate":"30/1","nb_frames":"90","start_time":"`+tc.startTime+`"}],"format":{"duration":"3.0"}}
JSON
`)
			// The frame at index 30 fails to decode: only two frames reach
			// the output, and the decoder reports the loss.
			argsFile := filepath.Join(dir, "ffmpeg.args")
			ffmpeg := testsupport.WriteScript(t, dir, "ffmpeg", `#!/bin/sh
printf '%s\n' "$@" > "`+argsFile+`"
n=0
for ts in `+tc.times+`; do
  echo "[Parsed_showinfo_1 @ 0x55d1] [info] n: $n pts: $n pts_time:$ts duration:1" >&2
  n=$((n+1))
done
echo "[h264 @ 0x55d2] [error] corrupt macroblock" >&2
head -c 48 /dev/zero | tr '\000' 'B'
`)

			got, err := frames.NewSampler(ffmpeg, probe, nil).Sample(context.Background(), video, 30)
			if err != nil {
				t.Fatalf("Sample: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 frames, got %d", len(got))
			}
			if got[0].Index != 0 || got[1].Index != 60 {
				t.Fatalf("indices = %d, %d; want 0, 60", got[0].Index, got[1].Index)
			}
			if got[1].Timestamp != 2*time.Second {
				t.Fatalf("second timestamp = %v", got[1].Timestamp)
			}

			args, err := os.ReadFile(argsFile)
			if err != nil {
				t.Fatalf("read args: %v", err)
			}
			wantFilter := "select=not(mod(round((t-(" + tc.origin + "))*30)\\,30)),showinfo"
			lines := strings.Split(strings.TrimSpace(string(args)), "\n")
			if !slices.Contains(lines, wantFilter) || !slices.Contains(lines, "-copyts") {
				t.Fatalf("ffmpeg args missing position select:\n%s", args)
			}
		})
	}
}
