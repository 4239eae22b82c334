package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/telemetry"
)

const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 3 * time.Second

	subscriberBuffer = 8
)

var ErrMonitorRunning = errors.New("health monitor already running")

// HealthMonitor probes the backend once on Start and then on a fixed cadence,
// whether the last result was healthy or not. Worst-case detection latency for
// both degradation and recovery is interval + probe timeout.
type HealthMonitor struct {
	probe     domain.Probe
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
	publisher domain.EventPublisher
	metrics   *telemetry.Metrics
	now       func() time.Time

	// Repeated failure warnings are throttled; transitions are always logged.
	stillDegraded rate.Sometimes

	mu      sync.RWMutex
	state   domain.HealthState
	subs    map[int]chan domain.HealthState
	nextSub int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type MonitorOption func(*HealthMonitor)

func WithInterval(d time.Duration) MonitorOption {
	return func(m *HealthMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(m *HealthMonitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithMonitorLogger(l zerolog.Logger) MonitorOption {
	return func(m *HealthMonitor) { m.logger = l.With().Str("component", "health_monitor").Logger() }
}

// WithMonitorPublisher receives health.changed events on every state change.
func WithMonitorPublisher(p domain.EventPublisher) MonitorOption {
	return func(m *HealthMonitor) { m.publisher = p }
}

func WithMonitorMetrics(mt *telemetry.Metrics) MonitorOption {
	return func(m *HealthMonitor) { m.metrics = mt }
}

func WithClock(now func() time.Time) MonitorOption {
	return func(m *HealthMonitor) { m.now = now }
}

func NewHealthMonitor(probe domain.Probe, opts ...MonitorOption) *HealthMonitor {
	m := &HealthMonitor{
		probe:         probe,
		interval:      DefaultProbeInterval,
		timeout:       DefaultProbeTimeout,
		logger:        zerolog.Nop(),
		now:           time.Now,
		stillDegraded: rate.Sometimes{Interval: 5 * time.Minute},
		state:         domain.HealthState{Status: domain.HealthUnknown},
		subs:          make(map[int]chan domain.HealthState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the probe loop. The first probe runs immediately.
func (m *HealthMonitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel != nil {
		return ErrMonitorRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go m.run(loopCtx, done)
	return nil
}

// Stop cancels the loop and waits for it, including an in-flight probe. Once
// Stop returns no further probe runs. Safe to call repeatedly; the monitor can
// be started again afterwards.
func (m *HealthMonitor) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *HealthMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.logger.Info().Dur("interval", m.interval).Dur("timeout", m.timeout).Msg("health monitor started")
	defer m.logger.Info().Msg("health monitor stopped")

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The ticker may win the race against cancellation.
			if ctx.Err() != nil {
				return
			}
			m.Check(ctx)
		}
	}
}

// Check runs exactly one probe cycle under the probe deadline and returns the
// resulting state. If ctx itself ends mid-probe the result is discarded.
func (m *HealthMonitor) Check(ctx context.Context) domain.HealthState {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	start := time.Now()
	err := m.probe.Probe(probeCtx)
	elapsed := time.Since(start)
	cancel()

	if err != nil && ctx.Err() != nil {
		return m.State()
	}

	next := domain.HealthState{LastChecked: m.now()}
	result := "healthy"

	var statusErr *domain.ProbeStatusError
	switch {
	case err == nil:
		next.Status = domain.HealthHealthy
		next.Reachable = true
	case errors.As(err, &statusErr):
		next.Status = domain.HealthDegraded
		next.Message = domain.MessageBackendUnhealthy
		result = "unhealthy"
	default:
		next.Status = domain.HealthDegraded
		next.Message = domain.MessageBackendUnreachable
		result = "unreachable"
	}
	m.metrics.ObserveProbe(result, next.Reachable, elapsed)

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.broadcastLocked(next)
	m.mu.Unlock()

	m.logOutcome(prev, next, err, elapsed)
	if prev.Status != next.Status || prev.Message != next.Message {
		m.publish(ctx, next)
	}
	return next
}

func (m *HealthMonitor) logOutcome(prev, next domain.HealthState, err error, elapsed time.Duration) {
	switch {
	case next.Status == domain.HealthDegraded && prev.Status != domain.HealthDegraded:
		m.logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("backend degraded")
	case next.Status == domain.HealthDegraded:
		m.stillDegraded.Do(func() {
			m.logger.Warn().Err(err).Msg("backend still degraded")
		})
	case prev.Status == domain.HealthDegraded:
		m.logger.Info().Dur("elapsed", elapsed).Msg("backend recovered")
	case prev.Status == domain.HealthUnknown:
		m.logger.Info().Dur("elapsed", elapsed).Msg("backend reachable")
	}
}

// State returns a snapshot. Status is unknown until the first probe resolves.
func (m *HealthMonitor) State() domain.HealthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Dismiss hides the current message without touching reachability. The next
// probe cycle writes a fresh message if the backend is still degraded.
func (m *HealthMonitor) Dismiss() domain.HealthState {
	m.mu.Lock()
	if m.state.Message == "" {
		s := m.state
		m.mu.Unlock()
		return s
	}
	m.state.Message = ""
	s := m.state
	m.broadcastLocked(s)
	m.mu.Unlock()

	m.publish(context.Background(), s)
	return s
}

// Subscribe streams the state after every probe cycle and every dismissal.
// A slow subscriber only loses stale states: the newest is always kept.
func (m *HealthMonitor) Subscribe() (<-chan domain.HealthState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan domain.HealthState, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *HealthMonitor) broadcastLocked(s domain.HealthState) {
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (m *HealthMonitor) publish(ctx context.Context, s domain.HealthState) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(ctx, domain.NewEvent(domain.TopicHealth, domain.EventHealthChanged, s))
}
