package pipeline

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// progressReporter throttles progress delivery to one event per interval.
// 0 and 100 always go through, and delivered values never decrease.
type progressReporter struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	now        func() time.Time
	last       int
	lastEmitAt time.Time

	deliver   func(percent int, status string)
	cancelled func() bool
	onReport  func()
}

func newProgressReporter(interval time.Duration, now func() time.Time, deliver func(int, string), cancelled func() bool, onReport func()) *progressReporter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if now == nil {
		now = time.Now
	}
	if deliver == nil {
		deliver = func(int, string) {}
	}
	if onReport == nil {
		onReport = func() {}
	}
	return &progressReporter{
		limiter:   rate.NewLimiter(limit, 1),
		now:       now,
		last:      -1,
		deliver:   deliver,
		cancelled: cancelled,
		onReport:  onReport,
	}
}

func (p *progressReporter) report(percent int, status string) {
	if p.cancelled() {
		return
	}
	p.onReport()

	percent = min(max(percent, 0), 100)

	p.mu.Lock()
	defer p.mu.Unlock()
	if percent < p.last {
		percent = p.last
	}
	now := p.now()
	allowed := p.limiter.AllowN(now, 1)
	if !allowed && percent != 0 && percent != 100 {
		return
	}
	p.last = percent
	p.lastEmitAt = now
	p.deliver(percent, status)
}

// Watchdog fires once when it has not been kicked for its duration. A zero
// duration disables it.
type Watchdog struct {
	mu      sync.Mutex
	d       time.Duration
	timer   *time.Timer
	stopped bool
	fired   bool
}

func NewWatchdog(d time.Duration, fire func()) *Watchdog {
	w := &Watchdog{d: d}
	if d <= 0 {
		return w
	}
	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		if w.stopped || w.fired {
			w.mu.Unlock()
			return
		}
		w.fired = true
		w.mu.Unlock()
		fire()
	})
	return w
}

// Kick restarts the countdown.
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil || w.stopped || w.fired {
		return
	}
	w.timer.Reset(w.d)
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Fired reports whether the watchdog ran out.
func (w *Watchdog) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}
