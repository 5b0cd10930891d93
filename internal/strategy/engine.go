// Package strategy derives advisory decisions from the processed sample
// stream: pit-window calls from sustained braking patterns, cooling and
// engine advisories from temperature and pressure channels.
package strategy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

// Config tunes the decision triggers.
type Config struct {
	WindowSize       int           `yaml:"window_size"`
	BrakeThreshold   float32       `yaml:"brake_threshold"`
	SustainedSamples int           `yaml:"sustained_samples"`
	MinSpeedDropKmh  uint16        `yaml:"min_speed_drop_kmh"`
	WaterTempLimitC  int16         `yaml:"water_temp_limit_c"`
	OilPressureFloor float32       `yaml:"oil_pressure_floor_bar"`
	Cooldown         time.Duration `yaml:"cooldown"`
	RecentDecisions  int           `yaml:"recent_decisions"`
}

func (c *Config) ApplyDefaults() {
	if c.WindowSize <= 0 {
		c.WindowSize = 50
	}
	if c.BrakeThreshold <= 0 {
		c.BrakeThreshold = 0.9
	}
	if c.SustainedSamples <= 0 {
		c.SustainedSamples = 10
	}
	if c.MinSpeedDropKmh == 0 {
		c.MinSpeedDropKmh = 60
	}
	if c.WaterTempLimitC == 0 {
		c.WaterTempLimitC = 130
	}
	if c.OilPressureFloor <= 0 {
		c.OilPressureFloor = 2.0
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 10 * time.Second
	}
	if c.RecentDecisions <= 0 {
		c.RecentDecisions = 16
	}
}

func (c *Config) Validate() error {
	if c.SustainedSamples > c.WindowSize {
		return fmt.Errorf("sustained_samples %d exceeds window_size %d", c.SustainedSamples, c.WindowSize)
	}
	return nil
}

// ErrCaptureRegression marks a sample whose capture time runs backwards
// against its car's history; the per-sample computation is abandoned.
var ErrCaptureRegression = errors.New("capture time regression")

// carWindow holds the bounded recent history for one car.
type carWindow struct {
	speeds   []uint16
	brakes   []float32
	lastSeen time.Time
}

func (w *carWindow) add(s domain.Sample, max int) {
	w.speeds = append(w.speeds, s.SpeedKmh)
	if len(w.speeds) > max {
		w.speeds = w.speeds[1:]
	}
	w.brakes = append(w.brakes, s.Brake)
	if len(w.brakes) > max {
		w.brakes = w.brakes[1:]
	}
	w.lastSeen = s.Captured
}

type emitKey struct {
	car  uint8
	kind domain.DecisionKind
}

// Engine consumes (Sample, Outcome) pairs synchronously on the
// processor's call path and appends timestamped decisions. Decisions are
// never revised; duplicate triggers are suppressed per car and kind for
// the cooldown interval.
type Engine struct {
	cfg      Config
	mu       sync.Mutex
	cars     map[uint8]*carWindow
	recent   []domain.Decision
	lastEmit map[emitKey]time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		cars:     make(map[uint8]*carWindow),
		lastEmit: make(map[emitKey]time.Time),
	}, nil
}

// Observe updates the per-car window and returns any decisions this
// sample triggered. A non-nil error is a per-sample computation fault;
// the engine state stays consistent and the pipeline keeps running.
func (e *Engine) Observe(s domain.Sample, now time.Time) ([]domain.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.cars[s.CarID]
	if w == nil {
		w = &carWindow{}
		e.cars[s.CarID] = w
	}
	if !w.lastSeen.IsZero() && s.Captured.Before(w.lastSeen) {
		return nil, fmt.Errorf("%w: %s before %s", ErrCaptureRegression, s.Captured, w.lastSeen)
	}
	w.add(s, e.cfg.WindowSize)

	var out []domain.Decision
	emit := func(kind domain.DecisionKind, detail string) {
		key := emitKey{car: s.CarID, kind: kind}
		if last, ok := e.lastEmit[key]; ok && now.Sub(last) < e.cfg.Cooldown {
			return
		}
		e.lastEmit[key] = now
		d := domain.Decision{At: now, CarID: s.CarID, Kind: kind, Detail: detail}
		out = append(out, d)
		e.recent = append(e.recent, d)
		if len(e.recent) > e.cfg.RecentDecisions {
			e.recent = e.recent[1:]
		}
	}

	if drop, sustained := e.brakingPattern(w); sustained {
		emit(domain.DecisionPitWindow,
			fmt.Sprintf("sustained braking over %d samples, speed drop %d km/h", e.cfg.SustainedSamples, drop))
	}
	if s.WaterTempC > e.cfg.WaterTempLimitC {
		emit(domain.DecisionCoolDown,
			fmt.Sprintf("water temp %d C above %d C limit", s.WaterTempC, e.cfg.WaterTempLimitC))
	}
	if s.OilPressureBar < e.cfg.OilPressureFloor {
		emit(domain.DecisionEngineCritical,
			fmt.Sprintf("oil pressure %.1f bar below %.1f bar floor", s.OilPressureBar, e.cfg.OilPressureFloor))
	}

	return out, nil
}

// brakingPattern reports whether the last SustainedSamples readings all
// show heavy braking with a large enough speed drop across them.
func (e *Engine) brakingPattern(w *carWindow) (drop int, sustained bool) {
	n := e.cfg.SustainedSamples
	if len(w.brakes) < n {
		return 0, false
	}
	tail := w.brakes[len(w.brakes)-n:]
	for _, b := range tail {
		if b < e.cfg.BrakeThreshold {
			return 0, false
		}
	}
	first := w.speeds[len(w.speeds)-n]
	last := w.speeds[len(w.speeds)-1]
	if first <= last {
		return 0, false
	}
	drop = int(first) - int(last)
	return drop, drop >= int(e.cfg.MinSpeedDropKmh)
}

// Decisions returns a copy of the bounded recent-decision log, oldest
// first.
func (e *Engine) Decisions() []domain.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Decision, len(e.recent))
	copy(out, e.recent)
	return out
}
