package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Options configures a Limiter.
type Options struct {
	Window      time.Duration
	MaxRequests int
	// SweepInterval defaults to Window.
	SweepInterval time.Duration
	// MaxEntries bounds the number of tracked clients, zero disables the cap.
	MaxEntries int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Limiter admits at most MaxRequests per client within a fixed window.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	window     time.Duration
	capacity   int
	interval   time.Duration
	maxEntries int
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
}

// New creates a Limiter. Start must be called to enable periodic sweeping.
func New(opts Options) *Limiter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.Window
	}
	return &Limiter{
		entries:    make(map[string]*entry),
		window:     opts.Window,
		capacity:   opts.MaxRequests,
		interval:   opts.SweepInterval,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
	}
}

// Admit records one request for clientID and reports whether it may proceed.
// A rejected request leaves the client's entry untouched.
func (l *Limiter) Admit(clientID string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[clientID]
	if !ok || now.After(e.resetAt) {
		if !ok {
			l.makeRoom(now)
		}
		l.entries[clientID] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	if e.count < l.capacity {
		e.count++
		return true
	}
	return false
}

// Sweep evicts every entry whose window has expired and returns how many
// were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

// Size returns the number of tracked clients.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// makeRoom keeps the map under maxEntries before a new client is inserted.
func (l *Limiter) makeRoom(now time.Time) {
	if l.maxEntries <= 0 || len(l.entries) < l.maxEntries {
		return
	}
	l.sweepLocked(now)
	for len(l.entries) >= l.maxEntries {
		var (
			oldestID string
			oldestAt time.Time
		)
		for id, e := range l.entries {
			if oldestID == "" || e.resetAt.Before(oldestAt) {
				oldestID, oldestAt = id, e.resetAt
			}
		}
		delete(l.entries, oldestID)
	}
}

// Start launches the background sweeper. It returns immediately.
func (l *Limiter) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.stop != nil {
		l.mu.Unlock()
		return nil
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.mu.Unlock()

	logger := log.FromCtx(ctx)
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if n := l.Sweep(l.now()); n > 0 {
					logger.Debug().Int("evicted", n).Int("tracked", l.Size()).Msg("rate limiter sweep")
				}
			}
		}
	}()
	return nil
}

// Shutdown stops the sweeper and waits for it to exit.
func (l *Limiter) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop = nil
	l.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
