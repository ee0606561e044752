// -------------------------------------------------------------------------------
// Prober - Secondary Store Health State Machine
//
// Author: Alex Freidah
//
// Periodically checks whether the secondary store is usable and flips the
// availability flag on change. With a handle present each tick runs a SELECT 1;
// without one it tries to establish a fresh connection. Probe I/O happens
// before any lock is taken; only the outcome is applied to AvailabilityState.
//
// States: unavailable <-> available. Transitions log once; steady state is quiet.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
	"github.com/Alaric-Jeff/Records-Information/internal/telemetry"
)

// -------------------------------------------------------------------------
// STATE
// -------------------------------------------------------------------------

type probeState int

const (
	stateUnavailable probeState = iota // no handle, or last probe failed
	stateAvailable                     // handle present and last probe succeeded
)

func (s probeState) String() string {
	switch s {
	case stateUnavailable:
		return "unavailable"
	case stateAvailable:
		return "available"
	default:
		return "unknown"
	}
}

func stateOf(available bool) probeState {
	if available {
		return stateAvailable
	}
	return stateUnavailable
}

// -------------------------------------------------------------------------
// PROBE OUTCOME
// -------------------------------------------------------------------------

// ProbeOutcome is the result of one health check or reconnect attempt.
type ProbeOutcome struct {
	Reachable bool
	Reason    string // empty when reachable
	Latency   time.Duration
	CheckedAt time.Time
}

func reachable(latency time.Duration) ProbeOutcome {
	return ProbeOutcome{Reachable: true, Latency: latency, CheckedAt: time.Now()}
}

func unreachable(err error, latency time.Duration) ProbeOutcome {
	return ProbeOutcome{Reason: err.Error(), Latency: latency, CheckedAt: time.Now()}
}

// -------------------------------------------------------------------------
// PROBER
// -------------------------------------------------------------------------

const defaultProbeInterval = 5 * time.Minute

// Prober drives secondary availability. Tick is safe to call directly in
// tests; Run calls it on a ticker until the context is cancelled.
type Prober struct {
	state        *AvailabilityState
	dialer       SecondaryDialer
	interval     time.Duration
	probeTimeout time.Duration
	logEvery     int
	ping         func(ctx context.Context, h *Handle) error

	tickMu     sync.Mutex // serializes ticks
	failStreak int        // consecutive failed reconnect attempts
}

// NewProber builds a prober from the sync configuration.
func NewProber(state *AvailabilityState, dialer SecondaryDialer, cfg config.SyncConfig) *Prober {
	interval := cfg.ProbeInterval()
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	return &Prober{
		state:        state,
		dialer:       dialer,
		interval:     interval,
		probeTimeout: cfg.ProbeTimeout,
		logEvery:     cfg.ReconnectLogEvery,
		ping: func(ctx context.Context, h *Handle) error {
			return h.Ping(ctx)
		},
	}
}

// Run ticks every interval until ctx is cancelled. A failing or panicking
// tick never stops the loop.
func (p *Prober) Run(ctx context.Context) {
	telemetry.SecondaryAvailable.Set(gaugeValue(p.state.Available()))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("Health prober started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Health prober stopped")
			return
		case <-ticker.C:
			p.safeTick(ctx)
		}
	}
}

func (p *Prober) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Health probe: tick panicked", "panic", r)
		}
	}()
	p.Tick(ctx)
}

// Tick performs one probe or reconnect attempt and applies the outcome.
func (p *Prober) Tick(ctx context.Context) ProbeOutcome {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	from := stateOf(p.state.Available())

	if h, ok := p.state.Secondary().Get(); ok {
		outcome := p.probe(ctx, h)
		if ctx.Err() != nil {
			return outcome
		}
		p.apply(from, outcome)
		return outcome
	}

	outcome, h := p.reconnect(ctx)
	if ctx.Err() != nil {
		if h != nil {
			h.Close()
		}
		return outcome
	}
	if outcome.Reachable {
		if prev, ok := p.state.ReplaceSecondary(Some(h)).Get(); ok {
			prev.Close()
		}
	}
	p.apply(from, outcome)
	return outcome
}

// probe runs the liveness query against an existing handle.
func (p *Prober) probe(ctx context.Context, h *Handle) ProbeOutcome {
	probeCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := p.ping(probeCtx, h)
	elapsed := time.Since(start)
	telemetry.ProbeDuration.Observe(elapsed.Seconds())

	if err != nil {
		telemetry.ProbesTotal.WithLabelValues("failure").Inc()
		return unreachable(err, elapsed)
	}
	telemetry.ProbesTotal.WithLabelValues("success").Inc()
	return reachable(elapsed)
}

// reconnect tries to establish a secondary handle when none is held.
func (p *Prober) reconnect(ctx context.Context) (ProbeOutcome, *Handle) {
	dialCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	h, err := p.dialer.ConnectSecondary(dialCtx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, ErrSecondaryNotConfigured) {
			telemetry.ReconnectAttemptsTotal.WithLabelValues("skipped").Inc()
			slog.Debug("Health probe: secondary not configured")
			return unreachable(err, elapsed), nil
		}
		telemetry.ReconnectAttemptsTotal.WithLabelValues("failure").Inc()
		p.failStreak++
		p.logReconnectFailure(err)
		return unreachable(err, elapsed), nil
	}
	if h == nil {
		telemetry.ReconnectAttemptsTotal.WithLabelValues("failure").Inc()
		return unreachable(fmt.Errorf("dialer returned no handle"), elapsed), nil
	}

	telemetry.ReconnectAttemptsTotal.WithLabelValues("success").Inc()
	if p.failStreak > 0 {
		slog.Info("Health probe: secondary reconnected", "failed_attempts", p.failStreak)
	}
	p.failStreak = 0
	return reachable(elapsed), h
}

// logReconnectFailure logs the first failure of a streak at WARN, then only a
// periodic INFO reminder. Everything else goes to DEBUG.
func (p *Prober) logReconnectFailure(err error) {
	switch {
	case p.failStreak == 1:
		slog.Warn("Health probe: secondary reconnect failed", "error", err)
	case p.logEvery > 0 && p.failStreak%p.logEvery == 0:
		slog.Info("Health probe: secondary still unreachable",
			"attempts", p.failStreak, "error", err)
	default:
		slog.Debug("Health probe: secondary reconnect failed",
			"attempts", p.failStreak, "error", err)
	}
}

// apply writes the outcome to the shared flag and emits a transition when
// the flag actually changed.
func (p *Prober) apply(from probeState, outcome ProbeOutcome) {
	if !p.state.SetAvailability(outcome.Reachable) {
		slog.Debug("Health probe: no change",
			"state", from.String(), "reachable", outcome.Reachable, "latency", outcome.Latency)
		return
	}
	p.transition(from, stateOf(outcome.Reachable), outcome)
}

// transition emits metrics and logs for a state change.
func (p *Prober) transition(from, to probeState, outcome ProbeOutcome) {
	telemetry.SecondaryAvailable.Set(gaugeValue(to == stateAvailable))
	telemetry.AvailabilityTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()

	switch to {
	case stateAvailable:
		slog.Info("Health probe: secondary store restored", "latency", outcome.Latency)
	case stateUnavailable:
		slog.Warn("Health probe: secondary store lost", "reason", outcome.Reason)
	}
}

func (p *Prober) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.probeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.probeTimeout)
}

func gaugeValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
