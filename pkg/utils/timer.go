package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed step of a Timer.
type Phase struct {
	Name      string
	StartTime time.Time
	Duration  time.Duration
	completed bool
}

// PhaseTimer stops one phase; use it with defer.
type PhaseTimer struct {
	timer     *Timer
	phaseName string
}

// Stop stops the phase timer and records the duration.
// Safe to call multiple times; only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.StopPhase(pt.phaseName)
}

// Timer records the duration of named phases in the order they start.
// It is safe for concurrent use.
type Timer struct {
	mu         sync.RWMutex
	name       string
	startTime  time.Time
	phases     map[string]*Phase
	phaseOrder []string
	logger     Logger
	enabled    bool
	clock      Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger PrintSummary writes to.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = logger
	}
}

// WithEnabled sets whether the timer is enabled.
// When disabled, all operations are no-ops.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock for testability.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*Phase),
		enabled: true,
		clock:   NewRealClock(),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.startTime = t.clock.Now()
	return t
}

// Start starts timing a new phase.
func (t *Timer) Start(phaseName string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, phaseName: phaseName}
	if !t.enabled {
		return pt
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.phases[phaseName]; !exists {
		t.phaseOrder = append(t.phaseOrder, phaseName)
	}
	t.phases[phaseName] = &Phase{Name: phaseName, StartTime: t.clock.Now()}
	return pt
}

// StopPhase stops timing a phase and returns its duration.
func (t *Timer) StopPhase(phaseName string) time.Duration {
	if !t.enabled {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	phase, ok := t.phases[phaseName]
	if !ok {
		return 0
	}
	if !phase.completed {
		phase.Duration = t.clock.Since(phase.StartTime)
		phase.completed = true
	}
	return phase.Duration
}

// GetDuration returns the duration of a completed phase.
func (t *Timer) GetDuration(phaseName string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if phase, ok := t.phases[phaseName]; ok {
		return phase.Duration
	}
	return 0
}

// TotalDuration returns the total duration since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.startTime)
}

// TimeFuncWithError times fn as a phase and returns its error.
func (t *Timer) TimeFuncWithError(phaseName string, fn func() error) (time.Duration, error) {
	pt := t.Start(phaseName)
	err := fn()
	return pt.Stop(), err
}

func (t *Timer) lines() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lines := []string{fmt.Sprintf("=== %s Timing Summary ===", t.name)}
	for i, name := range t.phaseOrder {
		lines = append(lines, fmt.Sprintf("Phase %d - %s: %v", i+1, name, t.phases[name].Duration))
	}
	return append(lines, fmt.Sprintf("Total: %v", t.TotalDuration()))
}

// Summary returns a formatted summary of all timing phases.
func (t *Timer) Summary() string {
	if !t.enabled {
		return ""
	}
	return strings.Join(t.lines(), "\n") + "\n"
}

// PrintSummary writes the summary to the configured logger at Info level.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.logger == nil {
		return
	}
	for _, line := range t.lines() {
		t.logger.Info("%s", line)
	}
}
