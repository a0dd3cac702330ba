package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen   = errors.New("circuit breaker is open")
	ErrProbeInFlight = errors.New("circuit breaker is probing")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before probing
	OpenTimeout time.Duration
	// Probes is the number of successful half-open calls that close the circuit
	Probes uint32
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from, to State)
}

// Counts holds breaker statistics since the last state change
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveFailures  uint32
	ConsecutiveSuccesses uint32
}

// Breaker guards calls to an unreliable collaborator. Cancellation of the
// caller's context is not counted as a failure of the collaborator.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probing  uint32
}

// New creates a circuit breaker; zero settings get defaults
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	return &Breaker{name: name, settings: settings}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(time.Now())
	return b.state
}

// Counts returns a copy of the counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn through the breaker
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	switch {
	case err == nil:
		b.record(true)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.release()
	default:
		b.record(false)
	}
	return result, err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh(time.Now())
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing >= b.settings.Probes {
			return ErrProbeInFlight
		}
		b.probing++
	}
	b.counts.Requests++
	return nil
}

// release forgets an admitted call whose outcome says nothing about the collaborator
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.probing > 0 {
		b.probing--
	}
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if success {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Probes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen, now)
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.settings.FailureThreshold {
			b.transition(StateOpen, now)
		}
	}
}

func (b *Breaker) refresh(now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.OpenTimeout {
		b.transition(StateHalfOpen, now)
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}
	b.probing = 0
	if to == StateOpen {
		b.openedAt = now
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
