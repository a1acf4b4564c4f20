package canonical

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantURL string
		wantID  string
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile watch", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare host", "http://youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ?si=abc", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ/", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"padded", "  https://youtu.be/dQw4w9WgXcQ \n", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch without id", "https://www.youtube.com/watch", "https://www.youtube.com/watch", ""},
		{"channel page", "https://www.youtube.com/@someone", "https://www.youtube.com/@someone", ""},
		{"lookalike host", "https://notyoutube.com/watch?v=dQw4w9WgXcQ", "https://notyoutube.com/watch?v=dQw4w9WgXcQ", ""},
		{"other site", " https://vimeo.com/12345 ", "https://vimeo.com/12345", ""},
		{"local file", "file:///tmp/clip.mp4", "file:///tmp/clip.mp4", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.in)
			if err != nil {
				t.Fatalf("Canonicalize(%q) error: %v", tc.in, err)
			}
			if got.URL != tc.wantURL || got.VideoID != tc.wantID {
				t.Fatalf("Canonicalize(%q) = %+v, want {%s %s}", tc.in, got, tc.wantURL, tc.wantID)
			}
		})
	}
}

func TestCanonicalizeRejectsBlank(t *testing.T) {
	if _, err := Canonicalize("   "); !errors.Is(err, ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
}

func TestCanonicalizeIsStable(t *testing.T) {
	first, err := Canonicalize("https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	second, err := Canonicalize(first.URL)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("canonical form not stable: %+v vs %+v", first, second)
	}
}
