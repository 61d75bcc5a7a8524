// Package reconnect implements the ReconnectionManager state machine
// (spec.md §3 ConnectionState, §4.4): backoff-driven reconnection with
// exponential delay, jitter, a capped attempt count, and a terminal
// Failed state.
package reconnect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/mcp-funnel/pkg/logger"
)

// State is one of the five ConnectionState values from spec.md §3.
type State string

// The ConnectionState state machine. Failed is terminal.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Policy is the spec.md §3 ReconnectionPolicy. All numeric fields must be
// >= 0; Multiplier must be > 1.
type Policy struct {
	MaxAttempts        int
	InitialDelay       time.Duration
	BackoffMultiplier  float64
	MaxDelay           time.Duration
	JitterFraction     float64
}

// Validate checks the policy invariants from spec.md §3.
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must be >= 0")
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must be >= 0")
	}
	if p.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoffMultiplier must be > 1")
	}
	if p.JitterFraction < 0 {
		return fmt.Errorf("jitterFraction must be >= 0")
	}
	return nil
}

// StateChange is delivered to listeners on every transition.
type StateChange struct {
	From            State
	To              State
	RetryCount      int
	NextRetryDelay  time.Duration // only set when To == StateReconnecting
	HasNextDelay    bool
	Error           error
}

// Listener receives state-change notifications.
type Listener func(StateChange)

// Manager owns ConnectionState for one transport instance. It is not
// shared between transports (spec.md §3 ownership).
type Manager struct {
	mu         sync.Mutex
	policy     Policy
	state      State
	retryCount int
	backoff    *backoff.ExponentialBackOff
	timer      *time.Timer
	listeners  []Listener
	rng        func() float64 // overridable for deterministic tests
}

// New creates a Manager in state Disconnected.
func New(policy Policy) *Manager {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialDelay
	b.Multiplier = policy.BackoffMultiplier
	b.MaxInterval = policy.MaxDelay
	b.RandomizationFactor = policy.JitterFraction
	b.MaxElapsedTime = 0 // attempt limiting is done by MaxAttempts, not elapsed time
	return &Manager{
		policy:  policy,
		state:   StateDisconnected,
		backoff: b,
	}
}

// OnStateChange registers a listener. Not safe to call concurrently with
// transitions that may already be in flight.
func (m *Manager) OnStateChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) emit(change StateChange) {
	for _, l := range m.listeners {
		l(change)
	}
}

// State returns the current ConnectionState.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RetryCount returns the number of reconnection attempts made so far.
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount
}

// OnConnecting transitions to Connecting.
func (m *Manager) OnConnecting() {
	m.transition(StateConnecting, nil, 0, false)
}

// OnConnected resets the retry count and transitions to Connected.
func (m *Manager) OnConnected() {
	m.mu.Lock()
	m.retryCount = 0
	m.backoff.Reset()
	m.mu.Unlock()
	m.transition(StateConnected, nil, 0, false)
}

// OnDisconnected transitions to Disconnected, unless the manager is
// already Failed — Failed is terminal and must never downgrade.
func (m *Manager) OnDisconnected(err error) {
	m.mu.Lock()
	if m.state == StateFailed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.transitionWithErr(StateDisconnected, err)
}

// ConnectFunc attempts a single (re)connection.
type ConnectFunc func(ctx context.Context) error

// ScheduleReconnect increments the retry count, computes the next delay,
// starts a timer, and transitions to Reconnecting. If the retry count
// would exceed MaxAttempts, it transitions to Failed and returns an error
// immediately without scheduling anything.
func (m *Manager) ScheduleReconnect(ctx context.Context, connect ConnectFunc) error {
	m.mu.Lock()
	if m.state == StateFailed {
		m.mu.Unlock()
		return fmt.Errorf("Max reconnection attempts (%d) exceeded", m.policy.MaxAttempts)
	}
	m.retryCount++
	if m.retryCount > m.policy.MaxAttempts {
		m.state = StateFailed
		count := m.retryCount
		m.mu.Unlock()
		err := fmt.Errorf("Max reconnection attempts (%d) exceeded", m.policy.MaxAttempts)
		m.emit(StateChange{From: StateReconnecting, To: StateFailed, RetryCount: count, Error: err})
		return err
	}

	result, err := m.backoff.NextBackOff()
	if err != nil {
		// cenkalti/backoff reports backoff.ErrStop/nil err in practice;
		// treat any reported error as "no more retries".
		m.state = StateFailed
		count := m.retryCount
		m.mu.Unlock()
		failErr := fmt.Errorf("Max reconnection attempts (%d) exceeded", m.policy.MaxAttempts)
		m.emit(StateChange{From: StateReconnecting, To: StateFailed, RetryCount: count, Error: failErr})
		return failErr
	}
	delay := result
	retryCount := m.retryCount
	from := m.state
	m.state = StateReconnecting
	m.mu.Unlock()

	m.emit(StateChange{From: from, To: StateReconnecting, RetryCount: retryCount, NextRetryDelay: delay, HasNextDelay: true})

	timer := time.AfterFunc(delay, func() {
		if err := connect(ctx); err != nil {
			logger.Warnf("reconnect attempt %d failed: %v", retryCount, err)
			m.OnDisconnected(err)
		}
	})

	m.mu.Lock()
	m.timer = timer
	m.mu.Unlock()
	return nil
}

// Cancel clears any pending reconnect timer and transitions to
// Disconnected, unless the manager is already Failed.
func (m *Manager) Cancel() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	failed := m.state == StateFailed
	m.mu.Unlock()
	if !failed {
		m.transition(StateDisconnected, nil, 0, false)
	}
}

// Reset clears retry count and backoff state without changing the current
// ConnectionState, for reuse after an external full reset.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = 0
	m.backoff.Reset()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Destroy cancels any pending work. After Destroy the Manager must not be
// reused.
func (m *Manager) Destroy() {
	m.Cancel()
}

func (m *Manager) transition(to State, err error, delay time.Duration, hasDelay bool) {
	m.mu.Lock()
	from := m.state
	m.state = to
	retryCount := m.retryCount
	m.mu.Unlock()
	m.emit(StateChange{From: from, To: to, RetryCount: retryCount, Error: err, NextRetryDelay: delay, HasNextDelay: hasDelay})
}

func (m *Manager) transitionWithErr(to State, err error) {
	m.transition(to, err, 0, false)
}
