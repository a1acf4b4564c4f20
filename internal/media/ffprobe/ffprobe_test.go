package ffprobe

import (
	"math"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "aac"},
    {"index": 1, "codec_type": "video", "codec_name": "h264", "width": 640, "height": 360,
     "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1", "nb_frames": "900", "duration": "30.03"}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 2, "duration": "30.05", "format_name": "mov,mp4"}
}`

func TestParseAndVideoStream(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	stream, ok := result.VideoStream()
	if !ok {
		t.Fatal("expected video stream")
	}
	if stream.Width != 640 || stream.Height != 360 {
		t.Fatalf("unexpected geometry %dx%d", stream.Width, stream.Height)
	}
	if rate := stream.FrameRate(); math.Abs(rate-29.97002997) > 1e-6 {
		t.Fatalf("unexpected frame rate %v", rate)
	}
	if n, ok := stream.FrameCount(); !ok || n != 900 {
		t.Fatalf("unexpected frame count %d %v", n, ok)
	}
	if result.DurationSeconds() != 30.05 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
}

func TestFrameCountFallsBackToReadFrames(t *testing.T) {
	stream := Stream{NBFrames: "N/A", NBReadFrames: "120"}
	if n, ok := stream.FrameCount(); !ok || n != 120 {
		t.Fatalf("expected nb_read_frames fallback, got %d %v", n, ok)
	}
	if _, ok := (Stream{}).FrameCount(); ok {
		t.Fatal("expected no frame count")
	}
}

func TestFrameRateFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		stream Stream
		want   float64
	}{
		{"avg", Stream{AvgFrameRate: "25/1"}, 25},
		{"avg zero uses base", Stream{AvgFrameRate: "0/0", RFrameRate: "24/1"}, 24},
		{"decimal", Stream{RFrameRate: "23.976"}, 23.976},
		{"missing", Stream{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stream.FrameRate(); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("FrameRate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimatedFrameCount(t *testing.T) {
	result := Result{Format: Format{Duration: "10"}}
	stream := Stream{AvgFrameRate: "30/1"}
	if got := result.EstimatedFrameCount(stream); got != 300 {
		t.Fatalf("expected 300 frames, got %d", got)
	}
	if got := (Result{}).EstimatedFrameCount(stream); got != 0 {
		t.Fatalf("expected 0 without duration, got %d", got)
	}
}

func TestDurationHandlesInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
}

func TestStartSeconds(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"", 0},
		{"N/A", 0},
		{"0.000000", 0},
		{"0.021333", 0.021333},
		{"-0.040000", -0.04},
	}
	for _, tt := range tests {
		if got := (Stream{StartTime: tt.value}).StartSeconds(); got != tt.want {
			t.Errorf("StartSeconds(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
