package frames

import "fmt"

// MediaOpenError reports a file that could not be opened as video: missing,
// unreadable, not media, or without a video stream.
type MediaOpenError struct {
	Path string
	Err  error
}

func (e *MediaOpenError) Error() string {
	return fmt.Sprintf("open media %q: %v", e.Path, e.Err)
}

func (e *MediaOpenError) Unwrap() error {
	return e.Err
}
