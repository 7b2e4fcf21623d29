// Package circuit implements a three-state circuit breaker guarding calls to
// an unhealthy dependency.
//
// Closed: calls pass through and consecutive failures are counted.
// Open: calls fail fast with ErrOpen until the cooldown elapses.
// HalfOpen: one trial call at a time is admitted; enough trial successes
// close the circuit, any trial failure re-opens it.
//
// Only failures the classifier marks as infrastructure failures move the
// breaker. Expected business rejections pass through untouched.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute when the call was short-circuited.
var ErrOpen = errors.New("circuit open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// StateChange reports the transition caused by a Record call, if any.
type StateChange struct {
	Opened     bool
	Closed     bool
	HalfOpened bool
}

// Classifier reports whether err indicates the guarded dependency is unhealthy.
type Classifier func(err error) bool

// Breaker is safe for concurrent use.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	classify         Classifier
	now              func() time.Time
	onStateChange    func(name string, from, to State)

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	openedAt      time.Time
	trialInFlight bool
}

// Option configures a Breaker.
type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClassifier sets which errors count as failures. The default counts every
// non-nil error except context cancellation by the caller.
func WithClassifier(c Classifier) Option {
	return func(b *Breaker) {
		if c != nil {
			b.classify = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithOnStateChange registers a hook invoked after every transition. It runs
// outside the breaker lock.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// New creates a closed breaker. Defaults: 5 failures to open, 1 trial success
// to close, 30s cooldown.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         30 * time.Second,
		classify:         defaultClassifier,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func defaultClassifier(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (b *Breaker) Name() string { return b.name }

// State returns the current state, reporting HalfOpen once the cooldown of an
// open breaker has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooldownElapsed() {
		return StateHalfOpen
	}
	return b.state
}

// IsOpen reports whether calls are currently being short-circuited.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Execute runs fn unless the circuit is open. The outcome of fn is recorded
// according to the classifier; fn's error is returned unchanged. Outcomes of
// calls admitted while closed are ignored if the circuit opened meanwhile.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ok, trial := b.acquire()
	if !ok {
		return ErrOpen
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.settle(trial, false)
	case b.classify(err):
		b.settle(trial, true)
	case trial:
		b.release()
	}
	return err
}

// Allow reports whether a call may proceed. In half-open it admits a single
// trial; the caller must report the outcome with RecordSuccess or RecordFailure.
func (b *Breaker) Allow() bool {
	ok, _ := b.acquire()
	return ok
}

func (b *Breaker) acquire() (ok, trial bool) {
	var change func()
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		ok = true
	case StateOpen:
		if b.cooldownElapsed() {
			change = b.transition(StateHalfOpen)
			b.trialInFlight = true
			ok, trial = true, true
		}
	case StateHalfOpen:
		if !b.trialInFlight {
			b.trialInFlight = true
			ok, trial = true, true
		}
	}
	b.mu.Unlock()
	if change != nil {
		change()
	}
	return ok, trial
}

func (b *Breaker) settle(trial, failed bool) {
	var change func()
	b.mu.Lock()
	switch {
	case trial && b.state == StateHalfOpen:
		b.trialInFlight = false
		if failed {
			change = b.transition(StateOpen)
			break
		}
		b.successCount++
		if b.successCount >= b.successThreshold {
			change = b.transition(StateClosed)
		}
	case b.state == StateClosed:
		if !failed {
			b.failureCount = 0
			break
		}
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			change = b.transition(StateOpen)
		}
	}
	b.mu.Unlock()
	if change != nil {
		change()
	}
}

// RecordSuccess records a successful call. It returns true when the primary
// path is healthy (circuit closed after this call).
func (b *Breaker) RecordSuccess() (bool, StateChange) {
	var (
		change func()
		sc     StateChange
	)
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateOpen, StateHalfOpen:
		b.trialInFlight = false
		b.successCount++
		if b.successCount >= b.successThreshold {
			change = b.transition(StateClosed)
			sc.Closed = true
		}
	}
	closed := b.state == StateClosed
	b.mu.Unlock()
	if change != nil {
		change()
	}
	return closed, sc
}

// RecordFailure records an infrastructure failure. It returns true when
// callers should use their fallback (circuit open after this call).
func (b *Breaker) RecordFailure() (bool, StateChange) {
	var (
		change func()
		sc     StateChange
	)
	b.mu.Lock()
	b.successCount = 0
	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			change = b.transition(StateOpen)
			sc.Opened = true
		}
	case StateHalfOpen:
		b.trialInFlight = false
		change = b.transition(StateOpen)
		sc.Opened = true
	case StateOpen:
		b.trialInFlight = false
		b.openedAt = b.now()
	}
	open := b.state == StateOpen
	b.mu.Unlock()
	if change != nil {
		change()
	}
	return open, sc
}

// Reset manually closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.transition(StateClosed)
	b.mu.Unlock()
	if change != nil {
		change()
	}
}

// release frees a half-open trial slot without counting the outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	b.trialInFlight = false
	b.mu.Unlock()
}

// cooldownElapsed must be called with b.mu held.
func (b *Breaker) cooldownElapsed() bool {
	return !b.now().Before(b.openedAt.Add(b.cooldown))
}

// transition must be called with b.mu held. It returns the hook invocation to
// run after unlocking, or nil when nothing changed.
func (b *Breaker) transition(to State) func() {
	from := b.state
	b.state = to
	switch to {
	case StateClosed:
		b.failureCount = 0
		b.successCount = 0
		b.trialInFlight = false
	case StateOpen:
		b.openedAt = b.now()
		b.successCount = 0
	case StateHalfOpen:
		b.successCount = 0
	}
	if from == to || b.onStateChange == nil {
		return nil
	}
	hook, name := b.onStateChange, b.name
	return func() { hook(name, from, to) }
}
