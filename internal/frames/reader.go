package frames

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// stderrDrainTimeout bounds how long Close waits for ffmpeg's log stream
// after the process was killed.
const stderrDrainTimeout = 2 * time.Second

// ErrInvalidStride is returned for a sampling stride below 1.
var ErrInvalidStride = errors.New("stride must be at least 1")

// Options configures a decode.
type Options struct {
	Stride        int
	FFmpegBinary  string
	FFprobeBinary string
}

// Reader streams sampled frames from a running ffmpeg process. Close must be
// called on every path; it is safe to call more than once.
type Reader struct {
	path   string
	info   Info
	ctx    context.Context
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	times  *timeQueue
	logged chan struct{}
	raw    *RawReader

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
}

// Open probes path and starts decoding every opts.Stride-th frame. A file
// with zero frames yields a Reader whose first Next returns io.EOF without
// starting ffmpeg.
func Open(ctx context.Context, path string, opts Options) (*Reader, error) {
	if opts.Stride < 1 {
		return nil, fmt.Errorf("open %q: %w (got %d)", path, ErrInvalidStride, opts.Stride)
	}
	info, err := Probe(ctx, opts.FFprobeBinary, path)
	if err != nil {
		return nil, err
	}

	reader := &Reader{path: path, info: info, ctx: ctx}
	limit := SampleCount(info.FrameCount, opts.Stride)
	if limit == 0 {
		reader.raw = NewRawReader(strings.NewReader(""), info.Width, info.Height, opts.Stride, info.FrameRate, 0)
		return reader, nil
	}

	binary := strings.TrimSpace(opts.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, decodeArgs(path, opts.Stride, limit, info)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, &MediaOpenError{Path: path, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}
	reader.cmd = cmd
	reader.stdout = stdout
	reader.stderr = &tailBuffer{max: 4096}
	reader.times = newTimeQueue()
	reader.logged = make(chan struct{})
	go reader.consumeLog(stderr)

	reader.raw = NewRawReader(stdout, info.Width, info.Height, opts.Stride, info.FrameRate, limit)
	if info.FrameRate > 0 {
		reader.raw.WithTimes(reader.times, info.StartTime)
	}
	return reader, nil
}

// decodeArgs selects frames by source position so a frame the decoder drops
// leaves a gap instead of shifting later samples. showinfo reports each
// selected frame's pts on stderr. Without a frame rate the position cannot be
// derived from time and selection falls back to the decoded ordinal.
func decodeArgs(path string, stride int, limit int64, info Info) []string {
	args := []string{"-nostdin", "-hide_banner", "-nostats"}
	filter := "select=not(mod(n\\," + strconv.Itoa(stride) + "))"
	if info.FrameRate > 0 {
		args = append(args, "-loglevel", "level+info", "-copyts")
		filter = fmt.Sprintf("select=not(mod(round((t-(%s))*%s)\\,%d)),showinfo",
			formatSeconds(info.StartTime), formatSeconds(info.FrameRate), stride)
	} else {
		args = append(args, "-loglevel", "level+error")
	}
	return append(args,
		"-i", path,
		"-map", "0:v:0",
		"-vf", filter,
		"-fps_mode", "passthrough",
		"-frames:v", strconv.FormatInt(limit, 10),
		"-pix_fmt", "gray",
		"-f", "rawvideo",
		"pipe:1",
	)
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// consumeLog feeds showinfo frame times to the queue and keeps the tail of
// everything else for error reports.
func (r *Reader) consumeLog(stderr io.Reader) {
	defer close(r.logged)
	defer r.times.close()

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if seconds, ok := parseShowinfo(line); ok {
			r.times.push(seconds)
			continue
		}
		if informational(line) {
			continue
		}
		_, _ = r.stderr.Write([]byte(line + "\n"))
	}
	_, _ = io.Copy(io.Discard, stderr)
}

// Info returns the probed stream description.
func (r *Reader) Info() Info {
	return r.info
}

// Next returns the next sampled frame or io.EOF. A decoder that fails before
// producing any frame is reported as a *MediaOpenError.
func (r *Reader) Next() (Frame, error) {
	frame, err := r.raw.Next()
	if err == nil {
		return frame, nil
	}
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return Frame{}, ctxErr
	}
	if !errors.Is(err, io.EOF) {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	if r.raw.Count() > 0 {
		return Frame{}, io.EOF
	}
	if waitErr := r.wait(); waitErr != nil {
		detail := strings.TrimSpace(r.stderr.String())
		if detail != "" {
			waitErr = fmt.Errorf("%w: %s", waitErr, detail)
		}
		return Frame{}, &MediaOpenError{Path: r.path, Err: fmt.Errorf("ffmpeg decode: %w", waitErr)}
	}
	return Frame{}, io.EOF
}

// Close stops the decoder and releases the pipe.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		if r.cmd == nil {
			return
		}
		if r.cmd.ProcessState == nil && r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		_ = r.stdout.Close()
		_ = r.wait()
	})
	return nil
}

func (r *Reader) wait() error {
	if r.cmd == nil {
		return nil
	}
	r.waitOnce.Do(func() {
		// Wait closes the stderr pipe, so the log reader finishes first.
		select {
		case <-r.logged:
		case <-time.After(stderrDrainTimeout):
		}
		r.waitErr = r.cmd.Wait()
	})
	return r.waitErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
