package timer

import (
	"sync"
	"time"
)

const defaultInterval = time.Second

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker returns a Ticker backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

type Config struct {
	// InitialTime is the countdown start in seconds.
	InitialTime int
	// Interval between two decrements, defaults to 1s.
	Interval time.Duration
	// OnTick receives the remaining seconds after each decrement.
	OnTick func(remaining int)
	// OnComplete is called once per run when the countdown reaches zero.
	OnComplete func()

	NewTickerFunc func(d time.Duration) Ticker
}

// Timer is a countdown. Callbacks are invoked from the timer goroutine without any lock held,
// so they may call back into the timer, except Close.
type Timer struct {
	interval   time.Duration
	onTick     func(int)
	onComplete func()
	newTicker  func(time.Duration) Ticker

	mu        sync.Mutex
	initial   int
	remaining int
	current   *run

	wg sync.WaitGroup
}

// run is one countdown process; a stale run never touches the timer state.
type run struct {
	stop chan struct{}
}

func New(c Config) *Timer {
	t := &Timer{
		interval:   c.Interval,
		onTick:     c.OnTick,
		onComplete: c.OnComplete,
		newTicker:  c.NewTickerFunc,
		initial:    max(c.InitialTime, 0),
		remaining:  max(c.InitialTime, 0),
	}

	if t.interval <= 0 {
		t.interval = defaultInterval
	}
	if t.newTicker == nil {
		t.newTicker = NewTicker
	}

	return t
}

// Start begins counting down. It is a no-op when already running or when no time is left.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil || t.remaining <= 0 {
		return
	}

	r := &run{stop: make(chan struct{})}
	t.current = r

	tk := t.newTicker(t.interval)
	t.wg.Add(1)
	go t.loop(r, tk)
}

func (t *Timer) loop(r *run, tk Ticker) {
	defer t.wg.Done()
	defer tk.Stop()

	for {
		select {
		case <-r.stop:
			return

		case <-tk.C():
			remaining, ok := t.decrement(r)
			if !ok {
				return
			}

			if t.onTick != nil {
				t.onTick(remaining)
			}

			if remaining == 0 {
				if t.onComplete != nil {
					t.onComplete()
				}
				return
			}
		}
	}
}

func (t *Timer) decrement(r *run) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != r {
		return 0, false
	}

	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.current = nil
	}

	return t.remaining, true
}

// Pause stops the countdown and keeps the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
}

// Reset stops the countdown and restores the initial time.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
	t.remaining = t.initial
}

// ResetTo stops the countdown and sets the remaining time to seconds.
func (t *Timer) ResetTo(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
	t.remaining = max(seconds, 0)
}

// Stop stops the countdown and restores the initial time.
func (t *Timer) Stop() {
	t.Reset()
}

// Close stops the timer and waits until its goroutine has exited.
// It must not be called from OnTick or OnComplete.
func (t *Timer) Close() {
	t.Stop()
	t.wg.Wait()
}

func (t *Timer) halt() {
	if t.current == nil {
		return
	}

	close(t.current.stop)
	t.current = nil
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current != nil
}

type Level string

const (
	LevelNormal   Level = "normal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// LevelOf classifies the remaining share of total: critical at or below 10%, warning at or below 25%.
// A timer without length is always normal.
func LevelOf(remaining, total int) Level {
	if total <= 0 {
		return LevelNormal
	}

	ratio := float64(remaining) / float64(total)
	switch {
	case ratio <= 0.1:
		return LevelCritical
	case ratio <= 0.25:
		return LevelWarning
	}
	return LevelNormal
}
