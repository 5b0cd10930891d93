package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		WindowSize:       20,
		BrakeThreshold:   0.9,
		SustainedSamples: 5,
		MinSpeedDropKmh:  50,
		Cooldown:         time.Minute,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func cruiseSample(car uint8, captured time.Time, speed uint16, brake float32) domain.Sample {
	return domain.Sample{
		CarID:          car,
		Captured:       captured,
		SpeedKmh:       speed,
		Brake:          brake,
		WaterTempC:     100,
		OilPressureBar: 4.0,
	}
}

func TestSustainedBrakingTriggersPitWindow(t *testing.T) {
	e := testEngine(t)
	now := time.Now()
	base := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)

	// 300 -> 120 km/h under full braking over five samples.
	speeds := []uint16{300, 260, 220, 170, 120}
	var all []domain.Decision
	for i, spd := range speeds {
		ds, err := e.Observe(cruiseSample(44, base.Add(time.Duration(i)*time.Millisecond), spd, 0.97), now)
		if err != nil {
			t.Fatalf("observe %d: %v", i, err)
		}
		all = append(all, ds...)
	}

	if len(all) != 1 || all[0].Kind != domain.DecisionPitWindow {
		t.Fatalf("want one pit-window decision, got %+v", all)
	}
	if all[0].CarID != 44 {
		t.Fatalf("decision attributed to wrong car: %d", all[0].CarID)
	}
}

func TestLightBrakingDoesNotTrigger(t *testing.T) {
	e := testEngine(t)
	now := time.Now()
	base := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)

	speeds := []uint16{300, 260, 220, 170, 120}
	for i, spd := range speeds {
		ds, err := e.Observe(cruiseSample(44, base.Add(time.Duration(i)*time.Millisecond), spd, 0.5), now)
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if len(ds) != 0 {
			t.Fatalf("light braking must not trigger, got %+v", ds)
		}
	}
}

func TestCooldownSuppressesDuplicates(t *testing.T) {
	e := testEngine(t)
	now := time.Now()
	base := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)

	s := cruiseSample(44, base, 200, 0)
	s.WaterTempC = 140

	ds, err := e.Observe(s, now)
	if err != nil || len(ds) != 1 || ds[0].Kind != domain.DecisionCoolDown {
		t.Fatalf("want cool-down decision, got %+v err=%v", ds, err)
	}

	s.Captured = base.Add(time.Millisecond)
	ds, err = e.Observe(s, now.Add(time.Second))
	if err != nil || len(ds) != 0 {
		t.Fatalf("cooldown should suppress duplicate, got %+v err=%v", ds, err)
	}

	// After the cooldown interval the condition may fire again.
	s.Captured = base.Add(2 * time.Millisecond)
	ds, err = e.Observe(s, now.Add(2*time.Minute))
	if err != nil || len(ds) != 1 {
		t.Fatalf("expected re-trigger after cooldown, got %+v err=%v", ds, err)
	}
}

func TestOilPressureCritical(t *testing.T) {
	e := testEngine(t)
	s := cruiseSample(81, time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC), 250, 0)
	s.OilPressureBar = 1.4

	ds, err := e.Observe(s, time.Now())
	if err != nil || len(ds) != 1 || ds[0].Kind != domain.DecisionEngineCritical {
		t.Fatalf("want engine-critical decision, got %+v err=%v", ds, err)
	}
}

func TestCaptureRegressionIsProcessingError(t *testing.T) {
	e := testEngine(t)
	base := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)
	now := time.Now()

	if _, err := e.Observe(cruiseSample(44, base, 200, 0), now); err != nil {
		t.Fatalf("first observe: %v", err)
	}
	_, err := e.Observe(cruiseSample(44, base.Add(-time.Second), 200, 0), now)
	if !errors.Is(err, ErrCaptureRegression) {
		t.Fatalf("want ErrCaptureRegression, got %v", err)
	}

	// The engine keeps working for subsequent samples.
	if _, err := e.Observe(cruiseSample(44, base.Add(time.Second), 200, 0), now); err != nil {
		t.Fatalf("engine did not recover: %v", err)
	}
}

func TestDecisionsAppendOnlyBounded(t *testing.T) {
	e, err := NewEngine(Config{RecentDecisions: 4, Cooldown: time.Nanosecond})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	base := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		s := cruiseSample(uint8(i+1), base.Add(time.Duration(i)*time.Millisecond), 200, 0)
		s.WaterTempC = 140
		if _, err := e.Observe(s, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("observe %d: %v", i, err)
		}
	}

	ds := e.Decisions()
	if len(ds) != 4 {
		t.Fatalf("want 4 recent decisions, got %d", len(ds))
	}
	for i := 1; i < len(ds); i++ {
		if ds[i].At.Before(ds[i-1].At) {
			t.Fatalf("decision log not append-ordered: %+v", ds)
		}
	}
}

func TestPerCarWindowsAreIndependent(t *testing.T) {
	e := testEngine(t)
	now := time.Now()
	base := time.Date(2024, 7, 7, 14, 0, 0, 0, time.UTC)

	// Interleave two cars; only car 44 brakes hard.
	speeds := []uint16{300, 260, 220, 170, 120}
	for i, spd := range speeds {
		ts := base.Add(time.Duration(i) * time.Millisecond)
		if _, err := e.Observe(cruiseSample(44, ts, spd, 0.95), now); err != nil {
			t.Fatalf("observe car 44: %v", err)
		}
		ds, err := e.Observe(cruiseSample(81, ts, 280, 0.1), now)
		if err != nil || len(ds) != 0 {
			t.Fatalf("car 81 should stay quiet, got %+v err=%v", ds, err)
		}
	}

	var pitCalls int
	for _, d := range e.Decisions() {
		if d.Kind == domain.DecisionPitWindow {
			if d.CarID != 44 {
				t.Fatalf("pit-window for wrong car: %d", d.CarID)
			}
			pitCalls++
		}
	}
	if pitCalls != 1 {
		t.Fatalf("want exactly one pit-window call, got %d", pitCalls)
	}
}
