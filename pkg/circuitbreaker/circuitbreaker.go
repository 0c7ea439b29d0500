// Package circuitbreaker stops the bot from hammering an upstream (the pet
// image APIs, mostly) after it starts failing, and probes it again later.
// No external dependencies - uses only standard library.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
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
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without calling the operation while the circuit is open.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open state once the probe quota is used.
	ErrProbeInFlight = errors.New("circuit breaker probe already in flight")
)

// Settings configure a Breaker.
type Settings struct {
	Name string
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	// MaxProbes bounds concurrent calls while half-open.
	MaxProbes int

	// IsFailure decides whether an error counts. Context cancellation never does.
	IsFailure     func(error) bool
	OnStateChange func(name string, from, to State)
	Now           func() time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	s Settings

	mu         sync.Mutex
	state      State
	failures   int
	successes  int
	probes     int
	openedAt   time.Time
	totalTrips int
}

// New creates a Breaker, filling zero settings with defaults.
func New(s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.MaxProbes <= 0 {
		s.MaxProbes = 1
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Breaker{s: s}
}

// PetsAPI returns a breaker for one pet image endpoint.
func PetsAPI(name string) *Breaker {
	return New(Settings{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	})
}

// Name returns the configured breaker name.
func (b *Breaker) Name() string { return b.s.Name }

// State returns the current state, promoting open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tick()
	return b.state
}

// Trips returns how many times the circuit has opened.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalTrips
}

// Execute runs op if the circuit allows it and records the outcome.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

// Reset closes the circuit and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tick()

	switch b.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probes >= b.s.MaxProbes {
			return ErrProbeInFlight
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}

	if !b.isFailure(err) {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.s.SuccessThreshold {
				b.transition(StateClosed)
			}
		}
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.s.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker) isFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if b.s.IsFailure != nil {
		return b.s.IsFailure(err)
	}
	return true
}

// tick must be called with mu held.
func (b *Breaker) tick() {
	if b.state == StateOpen && b.s.Now().Sub(b.openedAt) >= b.s.Cooldown {
		b.transition(StateHalfOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.probes = 0
	if to == StateOpen {
		b.openedAt = b.s.Now()
		b.totalTrips++
	}
	if from != to && b.s.OnStateChange != nil {
		b.s.OnStateChange(b.s.Name, from, to)
	}
}
