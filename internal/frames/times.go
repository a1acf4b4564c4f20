package frames

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// showinfoPattern matches the per-frame line the showinfo filter logs.
var showinfoPattern = regexp.MustCompile(`\bn:\s*\d+\s+pts:\s*-?\d+\s+pts_time:\s*(-?[0-9.eE+-]+)`)

// parseShowinfo extracts pts_time from a showinfo frame line.
func parseShowinfo(line string) (float64, bool) {
	match := showinfoPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// informational reports ffmpeg log lines below warning level. They are kept
// out of error details.
func informational(line string) bool {
	for _, tag := range []string{"[info]", "[verbose]", "[debug]", "[trace]"} {
		if strings.Contains(line, tag) {
			return true
		}
	}
	return false
}

// timeQueue is an unbounded FIFO of frame times. Producers never block;
// Next blocks until a time arrives or the queue is closed.
type timeQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	times  []float64
	closed bool
}

func newTimeQueue() *timeQueue {
	q := &timeQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *timeQueue) push(seconds float64) {
	q.mu.Lock()
	q.times = append(q.times, seconds)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *timeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Next implements FrameTimes.
func (q *timeQueue) Next() (float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.times) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.times) == 0 {
		return 0, false
	}
	seconds := q.times[0]
	q.times = q.times[1:]
	return seconds, true
}
