package transfer

import (
	"sync"
	"time"
)

// ProgressFunc receives cumulative byte counts during a transfer.
type ProgressFunc func(done, total int64)

const progressInterval = 200 * time.Millisecond

// progressReporter is an io.Writer that throttles ProgressFunc calls.
type progressReporter struct {
	total    int64
	done     int64
	cb       ProgressFunc
	mu       sync.Mutex
	lastFire time.Time
}

func newProgressReporter(total int64, cb ProgressFunc) *progressReporter {
	if cb == nil {
		return nil
	}
	return &progressReporter{total: total, cb: cb}
}

func (p *progressReporter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += int64(len(b))
	now := time.Now()
	if now.Sub(p.lastFire) >= progressInterval || p.done == p.total {
		p.lastFire = now
		p.cb(p.done, p.total)
	}
	return len(b), nil
}

func (p *progressReporter) flush() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb(p.done, p.total)
}
