// Package circuitbreaker stops calling a collaborator that keeps failing
// until a cooldown has passed. It never retries a call.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

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

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name        string
	MaxFailures int
	Cooldown    time.Duration
	// MaxTrialCalls is the number of calls let through while half-open.
	MaxTrialCalls int
}

type Snapshot struct {
	Name           string
	State          State
	Failures       int
	TotalCalls     int64
	TotalFailures  int64
	TotalRejected  int64
	LastFailure    time.Time
	LastTransition time.Time
}

type Breaker struct {
	name          string
	maxFailures   int
	cooldown      time.Duration
	maxTrialCalls int

	mutex          sync.Mutex
	state          State
	failures       int
	trials         int
	lastFailure    time.Time
	lastTransition time.Time
	totalCalls     int64
	totalFailures  int64
	totalRejected  int64

	now    func() time.Time
	logger *logrus.Logger
}

func New(config Config, logger *logrus.Logger) *Breaker {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.MaxTrialCalls <= 0 {
		config.MaxTrialCalls = 1
	}

	return &Breaker{
		name:          config.Name,
		maxFailures:   config.MaxFailures,
		cooldown:      config.Cooldown,
		maxTrialCalls: config.MaxTrialCalls,
		state:         StateClosed,
		now:           time.Now,
		logger:        logger,
	}
}

// Execute runs fn unless the breaker is open. A rejected call returns ErrOpen
// without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	switch {
	case err == nil:
		b.recordSuccess()
	case ctx.Err() == nil:
		b.recordFailure()
	case b.state == StateHalfOpen && b.trials > 0:
		// An aborted trial call proves nothing; free its slot for the next caller.
		b.trials--
	}
	return err
}

func (b *Breaker) admit() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.cooldown {
			b.totalRejected++
			return fmt.Errorf("%s: %w", b.name, ErrOpen)
		}
		b.transition(StateHalfOpen)
		b.trials = 0
	}
	if b.state == StateHalfOpen {
		if b.trials >= b.maxTrialCalls {
			b.totalRejected++
			return fmt.Errorf("%s: %w", b.name, ErrOpen)
		}
		b.trials++
	}
	b.totalCalls++
	return nil
}

func (b *Breaker) recordSuccess() {
	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

func (b *Breaker) recordFailure() {
	b.failures++
	b.totalFailures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.lastTransition = b.now()

	b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.name,
		"from_state":      from.String(),
		"to_state":        to.String(),
	}).Info("Circuit breaker state changed")
}

func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *Breaker) Snapshot() Snapshot {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return Snapshot{
		Name:           b.name,
		State:          b.state,
		Failures:       b.failures,
		TotalCalls:     b.totalCalls,
		TotalFailures:  b.totalFailures,
		TotalRejected:  b.totalRejected,
		LastFailure:    b.lastFailure,
		LastTransition: b.lastTransition,
	}
}

func (b *Breaker) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.transition(StateClosed)
	b.failures = 0
	b.trials = 0
	b.lastFailure = time.Time{}
}
