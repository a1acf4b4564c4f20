package transcribe

import (
	"fmt"
	"math"
	"strings"
)

// FormatSRTTime renders seconds as an SRT timestamp (HH:MM:SS,mmm), rounding
// to the nearest millisecond. Negative input clamps to zero.
func FormatSRTTime(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	totalMS := int64(math.Round(seconds * 1000))
	hours := totalMS / 3_600_000
	totalMS %= 3_600_000
	minutes := totalMS / 60_000
	totalMS %= 60_000
	secs := totalMS / 1000
	millis := totalMS % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// RenderSRT numbers the non-empty segments from 1 and joins them as SRT cues.
func RenderSRT(segments []Segment) string {
	var b strings.Builder
	index := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		index++
		end := seg.End
		if end < seg.Start {
			end = seg.Start
		}
		if index > 1 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", index, FormatSRTTime(seg.Start), FormatSRTTime(end), text)
	}
	return strings.TrimSpace(b.String())
}
