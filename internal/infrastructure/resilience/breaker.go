package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen fails calls immediately while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests rejects calls beyond the half-open trial quota.
	ErrTooManyRequests = errors.New("too many requests")
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Counts accumulates call outcomes within the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Settings tunes one breaker.
type Settings struct {
	// MaxRequests is the trial call quota in the half-open state.
	MaxRequests uint32
	// Interval is how often closed-state counts reset, so failures from
	// hours ago cannot combine with fresh ones to trip the breaker.
	Interval time.Duration
	// Timeout is how long the breaker stays open before trialing.
	Timeout time.Duration
	// ReadyToTrip decides, after each closed-state failure, whether to open.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to State)
}

// Breaker guards one named downstream. Every state period has a generation
// number; a call settles into the counts only when the generation it was
// admitted under is still current, so outcomes that straddle a transition
// are discarded.
type Breaker struct {
	name string
	cfg  Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	generation uint64
	deadline   time.Time
}

// New creates a closed breaker. Zero settings get workable defaults.
func New(name string, cfg Settings) *Breaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	return &Breaker{
		name:     name,
		cfg:      cfg,
		state:    StateClosed,
		deadline: time.Now().Add(cfg.Interval),
	}
}

// State reports the current position, applying any due transition first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.current(time.Now())
	return state
}

// Counts returns a copy of the current generation's counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs call when the breaker admits it and feeds the outcome back.
// A panic inside call counts as a failure and is re-raised.
func (b *Breaker) Execute(call func() (interface{}, error)) (interface{}, error) {
	gen, err := b.admit()
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			b.settle(gen, false)
			panic(r)
		}
	}()
	result, err := call()
	b.settle(gen, err == nil)
	return result, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, gen := b.current(time.Now())
	switch {
	case state == StateOpen:
		return gen, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.cfg.MaxRequests:
		return gen, ErrTooManyRequests
	}
	b.counts.Requests++
	return gen, nil
}

func (b *Breaker) settle(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.current(now)
	if current != gen {
		return
	}

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.MaxRequests {
			b.advance(StateClosed, now)
		}
		return
	}

	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.cfg.ReadyToTrip(b.counts) {
			b.advance(StateOpen, now)
		}
	case StateHalfOpen:
		// One failed trial sends the breaker straight back to open.
		b.advance(StateOpen, now)
	}
}

// current applies deadline-driven transitions and returns the resulting
// state and generation. Callers hold the mutex.
func (b *Breaker) current(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.deadline.IsZero() && now.After(b.deadline) {
			b.advance(StateClosed, now)
		}
	case StateOpen:
		if now.After(b.deadline) {
			b.advance(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

// advance starts a new generation in the given state. Re-entering the
// closed state refreshes the count window without notifying.
func (b *Breaker) advance(state State, now time.Time) {
	prev := b.state
	b.state = state
	b.generation++
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.deadline = now.Add(b.cfg.Interval)
	case StateOpen:
		b.deadline = now.Add(b.cfg.Timeout)
	default:
		// Half-open holds until the trial calls decide.
		b.deadline = time.Time{}
	}

	if prev != state && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, prev, state)
	}
}
