// Package dedupe suppresses repeated submissions of the same attendee and
// organization pair inside a short window, before any storage is touched.
package dedupe

import (
	"context"
	"sync"
	"time"

	id "checkin/pkg/domain"
)

const (
	// DefaultWindow is how long an accepted pair keeps rejecting repeats.
	DefaultWindow = 10 * time.Second

	defaultSweepEvery = 1024
)

// Key identifies one attendee visiting one organization.
type Key struct {
	AttendeeID     id.AttendeeID
	OrganizationID id.OrganizationID
}

func (k Key) String() string {
	return k.AttendeeID.String() + "|" + k.OrganizationID.String()
}

// MemoryFilter is a process-local duplicate filter. Entries expire lazily
// on access, and every sweepEvery accepted keys the whole map is pruned so
// memory stays bounded without a background goroutine.
type MemoryFilter struct {
	mu         sync.Mutex
	seen       map[Key]time.Time
	window     time.Duration
	sweepEvery int
	inserts    int
	now        func() time.Time
}

// Option configures a MemoryFilter.
type Option func(*MemoryFilter)

// WithWindow sets the suppression window. Non-positive values keep the default.
func WithWindow(d time.Duration) Option {
	return func(f *MemoryFilter) {
		if d > 0 {
			f.window = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *MemoryFilter) {
		if now != nil {
			f.now = now
		}
	}
}

// WithSweepEvery sets how many accepted keys trigger a full prune.
func WithSweepEvery(n int) Option {
	return func(f *MemoryFilter) {
		if n > 0 {
			f.sweepEvery = n
		}
	}
}

// NewMemory creates an empty in-memory filter.
func NewMemory(opts ...Option) *MemoryFilter {
	f := &MemoryFilter{
		seen:       make(map[Key]time.Time),
		window:     DefaultWindow,
		sweepEvery: defaultSweepEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ShouldReject reports whether key was accepted within the window. When it
// was not, the key is recorded at the current time and false is returned.
func (f *MemoryFilter) ShouldReject(_ context.Context, key Key) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if at, ok := f.seen[key]; ok {
		if now.Sub(at) < f.window {
			return true, nil
		}
		delete(f.seen, key)
	}

	f.seen[key] = now
	f.inserts++
	if f.inserts%f.sweepEvery == 0 {
		f.pruneLocked(now)
	}
	return false, nil
}

// Release forgets key so the next submission is evaluated afresh.
func (f *MemoryFilter) Release(_ context.Context, key Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, key)
	return nil
}

// Len returns the number of tracked keys, expired or not.
func (f *MemoryFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *MemoryFilter) pruneLocked(now time.Time) {
	for k, at := range f.seen {
		if now.Sub(at) >= f.window {
			delete(f.seen, k)
		}
	}
}
