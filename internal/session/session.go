// Package session turns the live stream of decoded device events into a
// safe, monotone-feeling measurement progress stream. It owns the phase
// state machine, the pressure history, the display safety filter and the
// abrupt-stop watchdog.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"bp_monitor/internal/logger"
	"bp_monitor/internal/models"
	"bp_monitor/internal/protocol"
)

// Config holds the session tunables. The defaults were chosen empirically,
// not clinically; treat them as a starting point, not requirements.
type Config struct {
	// WatchdogTimeout is the maximum silence between genuine pressure
	// updates before the session is force-reset.
	WatchdogTimeout time.Duration
	// WatchdogTick is how often the watchdog checks for silence.
	WatchdogTick time.Duration
	// MaxPressureStep bounds how far the displayed pressure may move per
	// update during inflation/deflation.
	MaxPressureStep uint16
	// MinPressureStep is the smallest movement worth displaying; anything
	// below it is jitter.
	MinPressureStep uint16
	// ProgressThrottle is the minimum interval between emitted Progress
	// events. Updates are queued and drained in order, never reordered.
	ProgressThrottle time.Duration
	// HistorySize bounds the retained pressure-history ring.
	HistorySize int
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		WatchdogTimeout:  2 * time.Second,
		WatchdogTick:     time.Second,
		MaxPressureStep:  8,
		MinPressureStep:  2,
		ProgressThrottle: 150 * time.Millisecond,
		HistorySize:      100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = d.WatchdogTimeout
	}
	if c.WatchdogTick <= 0 {
		c.WatchdogTick = d.WatchdogTick
	}
	if c.MaxPressureStep == 0 {
		c.MaxPressureStep = d.MaxPressureStep
	}
	if c.MinPressureStep == 0 {
		c.MinPressureStep = d.MinPressureStep
	}
	if c.ProgressThrottle <= 0 {
		c.ProgressThrottle = d.ProgressThrottle
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// Option customizes a Session at construction.
type Option func(*Session)

// WithClock injects a clock, so watchdog and throttle behavior can be
// tested without wall-clock waits.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// queued is one session event staged for ordered delivery.
type queued struct {
	gen  uint64
	done <-chan struct{}
	ev   models.SessionEvent
}

// Session manages one blood-pressure measurement for one device. It is a
// single-owner object: the transport layer must serialize calls into it.
// Tracking several devices requires one Session each.
type Session struct {
	cfg   Config
	log   *logger.Logger
	clock clockwork.Clock

	// gen counts session lifetimes; bumped on Start and on every reset so
	// the dispatcher can drop progress queued for a dead session.
	gen atomic.Uint64

	mu          sync.Mutex
	phase       models.MeasurementPhase
	active      bool
	done        chan struct{} // closed when the current session ends
	prev        uint16
	havePrev    bool
	peak        uint16
	hist        *pressureHistory
	safe        safePressureState
	lastGenuine time.Time
	staged      []queued // emitted under mu, flushed after unlock

	subsMu sync.RWMutex
	subs   []func(models.SessionEvent)

	queue  chan queued
	closed chan struct{}
	once   sync.Once
}

// New constructs an idle Session with the given tunables.
func New(cfg Config, log *logger.Logger, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg.withDefaults(),
		log:    log,
		clock:  clockwork.NewRealClock(),
		phase:  models.PhaseIdle,
		queue:  make(chan queued, 1024),
		closed: make(chan struct{}),
	}
	s.hist = newPressureHistory(s.cfg.HistorySize)
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

// Subscribe registers a callback for session events. Callbacks run on the
// dispatch goroutine in event order; they must not block for long.
func (s *Session) Subscribe(fn func(models.SessionEvent)) {
	s.subsMu.Lock()
	s.subs = append(s.subs, fn)
	s.subsMu.Unlock()
}

// Phase returns the current measurement phase.
func (s *Session) Phase() models.MeasurementPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Active reports whether a measurement is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// History returns the retained pressure readings, oldest first.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.snapshot()
}

// Start begins a measurement. Idempotent: starting an active session is a
// no-op. Phase moves to Waiting, state is cleared and the watchdog armed.
func (s *Session) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.gen.Add(1)
	s.active = true
	s.done = make(chan struct{})
	s.phase = models.PhaseWaiting
	s.havePrev = false
	s.peak = 0
	s.hist.clear()
	s.safe.reset()
	s.lastGenuine = s.clock.Now()
	s.stage(models.PhaseChanged{Phase: models.PhaseWaiting})
	gen, done := s.gen.Load(), s.done
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
	go s.runWatchdog(gen, done)
	s.log.Infow("measurement session started", "watchdog_timeout", s.cfg.WatchdogTimeout)
}

// Stop cancels the current measurement, as Reset.
func (s *Session) Stop() { s.Reset() }

// Reset forces the session back to Idle: the watchdog is disarmed, queued
// undelivered progress is dropped and all state cleared, so a subsequent
// Start behaves like first use. Resetting an idle session is a no-op.
func (s *Session) Reset() {
	s.mu.Lock()
	changed := s.resetLocked()
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
	if changed {
		s.log.Infow("measurement session reset")
	}
}

// Close releases the dispatch goroutine. The session must not be used
// afterwards.
func (s *Session) Close() {
	s.Reset()
	s.once.Do(func() { close(s.closed) })
}

// HandleDeviceEvent is the only ingestion point for decoded device events.
func (s *Session) HandleDeviceEvent(ev models.DeviceEvent) {
	switch e := ev.(type) {
	case models.PressureSample:
		s.handlePressure(e)
	case models.FinalResult:
		s.handleFinal(e)
	case models.DeviceError:
		s.handleDeviceError(e)
	default:
		// Unrelated real-time telemetry (heart rate, battery, ...) never
		// advances the measurement and never feeds the watchdog.
	}
}

// ReportDecodeFailure surfaces a decode error on a frame that would have
// advanced the measurement. The current session terminates; a new Start is
// always possible afterwards. No-op while idle.
func (s *Session) ReportDecodeFailure(reason string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.phase = models.PhaseError
	s.stage(models.PhaseChanged{Phase: models.PhaseError})
	s.stage(models.SessionError{Kind: models.ErrDecodeFailure, Message: reason})
	s.resetLocked()
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
	s.log.Warnw("session aborted on decode failure", "reason", reason)
}

func (s *Session) handlePressure(e models.PressureSample) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.lastGenuine = now
	s.hist.push(HistoryEntry{PressureMmHg: e.PressureMmHg, AtMillis: now.UnixMilli()})

	p := e.PressureMmHg
	phase := s.phase
	// A fast deflate can cross more than one boundary in a single sample,
	// so advance until stable. Transitions only ever move forward.
	for {
		np := nextPhase(phase, s.prev, s.havePrev, s.peak, p)
		if np == phase {
			break
		}
		phase = np
		s.stage(models.PhaseChanged{Phase: np})
	}
	s.phase = phase
	if phase == models.PhaseInflating && p > s.peak {
		s.peak = p
	}

	display := s.safe.display(p, phase, s.cfg.MaxPressureStep, s.cfg.MinPressureStep, now)
	s.stage(models.Progress{PressureMmHg: display, Phase: phase})

	s.prev = p
	s.havePrev = true
	if phase == models.PhaseComplete {
		// Pressure reached zero with no final result frame; the
		// measurement is over but there is nothing to report.
		s.deactivateLocked()
	}
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
}

func (s *Session) handleFinal(e models.FinalResult) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	result := models.BPMeasurement{
		ID:                 uuid.NewString(),
		SystolicMmHg:       e.SystolicMmHg,
		DiastolicMmHg:      e.DiastolicMmHg,
		MeanMmHg:           e.MeanMmHg,
		PulseRateBpm:       e.PulseRateBpm,
		IrregularHeartbeat: e.IrregularHeartbeat,
		Quality:            protocol.Quality(e.QualityRaw),
		Timestamp:          s.clock.Now(),
	}
	s.phase = models.PhaseComplete
	s.stage(models.PhaseChanged{Phase: models.PhaseComplete})
	s.stage(models.MeasurementComplete{Result: result})
	s.deactivateLocked()
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
	s.log.Infow("measurement complete",
		"systolic", result.SystolicMmHg,
		"diastolic", result.DiastolicMmHg,
		"pulse", result.PulseRateBpm,
		"quality", result.Quality,
	)
}

func (s *Session) handleDeviceError(e models.DeviceError) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		s.log.Debugw("device error while idle", "code", e.Code, "message", e.Message)
		return
	}
	s.phase = models.PhaseError
	s.stage(models.PhaseChanged{Phase: models.PhaseError})
	s.stage(models.SessionError{Kind: models.ErrDeviceReported, Code: e.Code, Message: e.Message})
	s.resetLocked()
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
	s.log.Warnw("device reported error", "code", e.Code, "message", e.Message)
}

// runWatchdog force-resets the session when the device stops sending
// pressure updates without an explicit completion or error frame. A stuck
// "measuring" indicator on a medical display is the failure mode this
// guards against.
func (s *Session) runWatchdog(gen uint64, done <-chan struct{}) {
	t := s.clock.NewTicker(s.cfg.WatchdogTick)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.Chan():
			if s.checkStalled(gen) {
				return
			}
		}
	}
}

// checkStalled fires the watchdog when the session has gone silent.
// Returns true when this watchdog instance is finished.
func (s *Session) checkStalled(gen uint64) bool {
	s.mu.Lock()
	if !s.active || s.gen.Load() != gen || !s.phase.Active() {
		s.mu.Unlock()
		return true
	}
	elapsed := s.clock.Now().Sub(s.lastGenuine)
	if elapsed <= s.cfg.WatchdogTimeout {
		s.mu.Unlock()
		return false
	}
	phase := s.phase
	s.stage(models.SessionError{Kind: models.ErrWatchdogTimeout, Message: "device stopped sending pressure updates"})
	s.resetLocked()
	out := s.take()
	s.mu.Unlock()

	s.flush(out)
	s.log.Warnw("watchdog timeout, session reset",
		"phase", phase,
		"silent_for", elapsed,
	)
	return true
}

// resetLocked clears all session state and disarms the watchdog. Caller
// holds mu. Returns false when there was nothing to reset.
func (s *Session) resetLocked() bool {
	if !s.active && s.phase == models.PhaseIdle {
		return false
	}
	s.deactivateLocked()
	s.gen.Add(1) // invalidates progress queued for the old session
	s.phase = models.PhaseIdle
	s.havePrev = false
	s.peak = 0
	s.hist.clear()
	s.safe.reset()
	s.stage(models.PhaseChanged{Phase: models.PhaseIdle})
	return true
}

// deactivateLocked ends the session lifetime without clearing the phase.
func (s *Session) deactivateLocked() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.active = false
}

func (s *Session) stage(ev models.SessionEvent) {
	s.staged = append(s.staged, queued{gen: s.gen.Load(), done: s.done, ev: ev})
}

func (s *Session) take() []queued {
	out := s.staged
	s.staged = nil
	return out
}

// flush hands staged events to the dispatcher. Must be called without mu
// held: the queue is bounded and the dispatcher may be mid-throttle.
func (s *Session) flush(out []queued) {
	for _, q := range out {
		select {
		case s.queue <- q:
		case <-s.closed:
			return
		}
	}
}

// dispatch delivers events to subscribers in arrival order. Progress
// events are throttled to one per ProgressThrottle interval; the delay
// shifts delivery but never reorders it, and a reset mid-throttle drops
// only the progress belonging to the dead session.
func (s *Session) dispatch() {
	var lastProgress time.Time
	haveProgress := false
	for {
		select {
		case <-s.closed:
			return
		case q := <-s.queue:
			if _, ok := q.ev.(models.Progress); ok {
				if q.gen != s.gen.Load() {
					continue
				}
				if haveProgress {
					wait := s.cfg.ProgressThrottle - s.clock.Now().Sub(lastProgress)
					if wait > 0 {
						select {
						case <-s.clock.After(wait):
						case <-q.done:
							// Session ended mid-throttle. Reset means the
							// progress is stale; completion means drain it
							// without further delay.
							if q.gen != s.gen.Load() {
								continue
							}
						case <-s.closed:
							return
						}
					}
				}
				if q.gen != s.gen.Load() {
					continue
				}
				lastProgress = s.clock.Now()
				haveProgress = true
			}
			s.deliver(q.ev)
		}
	}
}

func (s *Session) deliver(ev models.SessionEvent) {
	s.subsMu.RLock()
	subs := make([]func(models.SessionEvent), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
