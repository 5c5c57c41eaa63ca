package monitor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultInterval is the check period used when none is configured.
const DefaultInterval = 60 * time.Second

// Ticker is the part of *time.Ticker the monitor uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// TickFunc is called once per tick with the run's context. The context is
// cancelled as soon as the run is stopped or replaced.
type TickFunc func(ctx context.Context)

// Monitor drives TickFunc on a fixed interval.
type Monitor struct {
	interval  time.Duration
	onTick    TickFunc
	newTicker TickerFactory

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	runs   uint64
}

// New returns a stopped Monitor. factory may be nil.
func New(interval time.Duration, onTick TickFunc, factory TickerFactory) (*Monitor, error) {
	if onTick == nil {
		return nil, errors.New("monitor: tick func required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if factory == nil {
		factory = NewTicker
	}
	return &Monitor{interval: interval, onTick: onTick, newTicker: factory}, nil
}

// Interval returns the tick period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start begins ticking. A run already in progress is stopped first, so there
// is never more than one active ticker.
func (m *Monitor) Start(parent context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	ticker := m.newTicker(m.interval)
	m.cancel = cancel
	m.done = done
	m.runs++

	go m.loop(ctx, ticker, done)
}

func (m *Monitor) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.done == done && m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			m.mu.Unlock()
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			m.onTick(ctx)
		}
	}
}

// Stop cancels the current run without waiting for it to exit. A tick
// already executing observes a cancelled context. Stop is idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Wait blocks until the most recent run has exited or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Runs returns how many times Start has been called.
func (m *Monitor) Runs() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}
