package health

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mase1981/uc-intg-jellyfin/internal/metrics"
)

// State is the process-wide connectivity state. The Monitor is its only
// writer; everyone else reads.
type State int32

const (
	StateConnected State = iota
	StateDegraded
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Transition is published on every state change.
type Transition struct {
	From State
	To   State
}

const (
	defaultProbeInterval    = 30 * time.Second
	defaultFailureThreshold = 3
	defaultBackoffBase      = 5 * time.Second
	defaultBackoffCap       = 300 * time.Second
	defaultProbeTimeout     = 10 * time.Second

	transitionQueueSize = 16
)

type prober interface {
	Probe(ctx context.Context) error
}

// Monitor probes server reachability and drives the connectivity state
// machine. Probe cadence is fixed while connected or degraded; while
// disconnected the schedule follows jittered exponential backoff so an
// unreachable server is not hammered.
type Monitor struct {
	probe     prober
	log       *slog.Logger
	interval  time.Duration
	threshold int
	timeout   time.Duration

	state       atomic.Int32
	transitions chan Transition

	mu       sync.Mutex
	failures int

	bo *backoff.ExponentialBackOff
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithFailureThreshold(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

func WithBackoffBounds(base, limit time.Duration) Option {
	return func(m *Monitor) {
		if base > 0 {
			m.bo.InitialInterval = base
		}
		if limit >= base {
			m.bo.MaxInterval = limit
		}
	}
}

func NewMonitor(probe prober, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(defaultBackoffBase),
		backoff.WithMaxInterval(defaultBackoffCap),
		backoff.WithRandomizationFactor(0.2),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(0),
	)

	m := &Monitor{
		probe:       probe,
		log:         logger,
		interval:    defaultProbeInterval,
		threshold:   defaultFailureThreshold,
		timeout:     defaultProbeTimeout,
		transitions: make(chan Transition, transitionQueueSize),
		bo:          bo,
	}
	for _, opt := range opts {
		opt(m)
	}
	// Options may have changed the backoff bounds; restart the schedule so
	// the first interval honors them.
	m.bo.Reset()
	m.state.Store(int32(StateConnected))
	metrics.ConnectivityState.Set(0)
	return m
}

// State returns the current connectivity state without locking.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Transitions is the stream of state changes, consumed by the
// reconciliation loop.
func (m *Monitor) Transitions() <-chan Transition {
	return m.transitions
}

// Run probes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		wait := m.interval
		if m.State() == StateDisconnected {
			wait = m.nextBackoff()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.probe.Probe(probeCtx)
		cancel()

		if err != nil {
			m.log.Debug("health_probe_failed", slog.String("error", err.Error()))
			m.RecordFailure()
		} else {
			m.RecordSuccess()
		}
	}
}

// RecordSuccess resets the failure counter and, when degraded or
// disconnected, transitions back to connected. Reconciler successes feed
// this too.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures = 0
	if cur := m.State(); cur != StateConnected {
		m.bo.Reset()
		m.setState(cur, StateConnected)
	}
}

// RecordFailure counts one consecutive failure: the first moves connected
// to degraded, the Nth moves degraded to disconnected.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	cur := m.State()
	switch {
	case cur == StateConnected:
		m.setState(cur, StateDegraded)
	case cur == StateDegraded && m.failures >= m.threshold:
		m.setState(cur, StateDisconnected)
	}
}

// setState requires m.mu held.
func (m *Monitor) setState(from, to State) {
	m.state.Store(int32(to))
	metrics.ConnectivityState.Set(float64(to))
	m.log.Info("connectivity_transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	select {
	case m.transitions <- Transition{From: from, To: to}:
	default:
		m.log.Warn("connectivity_transition_dropped", slog.String("to", to.String()))
	}
}

func (m *Monitor) nextBackoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bo.NextBackOff()
}
