package monitor

import (
	"math"
	"testing"
	"time"

	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/trigger"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

type signalRecorder struct {
	signals []trigger.Signal
}

func (r *signalRecorder) emit(sig trigger.Signal) {
	r.signals = append(r.signals, sig)
}

func boolUpdate(param string, v bool, ts time.Time) event.SensorEvent {
	return event.SensorEvent{
		Source:    event.RoleTrainer,
		Parameter: param,
		Kind:      event.BoolValue,
		Bool:      v,
		Timestamp: ts,
	}
}

func testMeterConfig() MeterConfig {
	return MeterConfig{
		Kind:       trigger.KindFocus,
		TargetRole: event.RolePet,
		Parameter:  "Trainer/EyeContact",
		FillRate:   0,
		DrainRate:  1,
		Max:        10,
		Recovery:   5,
	}
}

func TestMeter_ExactlyOneTriggerPerZeroCrossing(t *testing.T) {
	rec := &signalRecorder{}
	m := NewMeter(testMeterConfig(), rec.emit)

	start := time.Now()
	m.Prime(start)

	// Ten "false" updates 1s apart drain the meter from 10 to 0.
	for i := 1; i <= 10; i++ {
		m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(time.Duration(i)*time.Second)))
	}

	if got := len(rec.signals); got != 1 {
		t.Fatalf("triggers: got %d, want exactly 1", got)
	}
	if rec.signals[0].Kind != trigger.KindFocus {
		t.Errorf("kind: got %s, want focus", rec.signals[0].Kind)
	}
	if !floatEquals(rec.signals[0].Severity, 1.0) {
		t.Errorf("severity: got %v, want 1.0", rec.signals[0].Severity)
	}
	if !floatEquals(m.Level(), 5) {
		t.Errorf("level after trigger: got %v, want recovery 5", m.Level())
	}
}

func TestMeter_LevelStaysBounded(t *testing.T) {
	cfg := testMeterConfig()
	cfg.FillRate = 3
	cfg.DrainRate = 3
	rec := &signalRecorder{}
	m := NewMeter(cfg, rec.emit)

	start := time.Now()
	m.Prime(start)

	// Alternate long stretches of true and false; level must never leave
	// [0, max] at any step.
	states := []bool{true, true, false, false, false, false, false, true, true, true, true, true, false}
	for i, s := range states {
		m.HandleEvent(boolUpdate("Trainer/EyeContact", s, start.Add(time.Duration(i+1)*time.Second)))
		if m.Level() < 0 || m.Level() > cfg.Max {
			t.Fatalf("step %d: level %v outside [0, %v]", i, m.Level(), cfg.Max)
		}
	}
}

func TestMeter_NoStormAtZeroWithZeroRecovery(t *testing.T) {
	cfg := testMeterConfig()
	cfg.Recovery = 0
	rec := &signalRecorder{}
	m := NewMeter(cfg, rec.emit)

	start := time.Now()
	m.Prime(start)

	for i := 1; i <= 30; i++ {
		m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(time.Duration(i)*time.Second)))
	}

	// Level sits at zero from the 10th update on; only the crossing fires.
	if got := len(rec.signals); got != 1 {
		t.Errorf("triggers: got %d, want 1", got)
	}
}

func TestMeter_RetriggersAfterRecovery(t *testing.T) {
	rec := &signalRecorder{}
	m := NewMeter(testMeterConfig(), rec.emit)

	start := time.Now()
	m.Prime(start)

	// 10 drains to the first crossing, then 5 more through the recovery level.
	for i := 1; i <= 15; i++ {
		m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(time.Duration(i)*time.Second)))
	}

	if got := len(rec.signals); got != 2 {
		t.Errorf("triggers: got %d, want 2", got)
	}
}

func TestMeter_IgnoresOtherParameters(t *testing.T) {
	rec := &signalRecorder{}
	m := NewMeter(testMeterConfig(), rec.emit)

	start := time.Now()
	m.Prime(start)

	for i := 1; i <= 20; i++ {
		m.HandleEvent(boolUpdate("Trainer/Near", false, start.Add(time.Duration(i)*time.Second)))
	}

	if len(rec.signals) != 0 {
		t.Error("unrelated parameter must not move the meter")
	}
	if !floatEquals(m.Level(), 10) {
		t.Errorf("level: got %v, want untouched 10", m.Level())
	}
}

func TestMeter_FreezesOnStaleGap(t *testing.T) {
	cfg := testMeterConfig()
	cfg.Staleness = 3 * time.Second
	rec := &signalRecorder{}
	m := NewMeter(cfg, rec.emit)

	start := time.Now()
	m.Prime(start)

	m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(1*time.Second)))
	if !floatEquals(m.Level(), 9) {
		t.Fatalf("level after first drain: got %v, want 9", m.Level())
	}

	// A 60s gap must not drain 60 units; the meter freezes instead.
	m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(61*time.Second)))
	if !floatEquals(m.Level(), 9) {
		t.Errorf("level after stale gap: got %v, want frozen at 9", m.Level())
	}
	if !m.Status().Stale {
		t.Error("expected stale status after gap")
	}

	// Updates resuming at a normal cadence drain again and clear staleness.
	m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(62*time.Second)))
	if !floatEquals(m.Level(), 8) {
		t.Errorf("level after resume: got %v, want 8", m.Level())
	}
	if m.Status().Stale {
		t.Error("staleness should clear once updates resume")
	}
}

func TestMeter_TickMarksStale(t *testing.T) {
	cfg := testMeterConfig()
	cfg.Staleness = 3 * time.Second
	m := NewMeter(cfg, (&signalRecorder{}).emit)

	start := time.Now()
	m.Prime(start)
	m.HandleEvent(boolUpdate("Trainer/EyeContact", true, start.Add(time.Second)))

	wake, ok := m.NextWake(start.Add(time.Second))
	if !ok {
		t.Fatal("expected a staleness wake-up")
	}
	if want := start.Add(4 * time.Second); !wake.Equal(want) {
		t.Errorf("wake: got %v, want %v", wake, want)
	}

	m.Tick(start.Add(5 * time.Second))
	if !m.Status().Stale {
		t.Error("expected stale after tick past threshold")
	}
}

func TestMeter_PenaltyWordDrains(t *testing.T) {
	cfg := testMeterConfig()
	cfg.PenaltyWords = []string{"rex"}
	cfg.PenaltyRole = event.RoleTrainer
	cfg.Penalty = 4
	rec := &signalRecorder{}
	m := NewMeter(cfg, rec.emit)

	start := time.Now()
	m.Prime(start)

	say := func(text string, at time.Time) {
		m.HandleEvent(event.SpeechEvent{
			Role:  event.RoleTrainer,
			Text:  text,
			Start: at.Add(-time.Second),
			End:   at,
		})
	}

	say("Rex! Come here", start.Add(time.Second))
	if !floatEquals(m.Level(), 6) {
		t.Fatalf("level after one name call: got %v, want 6", m.Level())
	}

	// Pet speech never penalizes, and neither does unrelated trainer speech.
	m.HandleEvent(event.SpeechEvent{Role: event.RolePet, Text: "rex", End: start.Add(2 * time.Second)})
	say("good dog", start.Add(3*time.Second))
	if !floatEquals(m.Level(), 6) {
		t.Fatalf("level: got %v, want unchanged 6", m.Level())
	}

	// Two more calls cross zero: exactly one trigger, reset to recovery.
	say("rex", start.Add(4*time.Second))
	say("rex", start.Add(5*time.Second))
	if got := len(rec.signals); got != 1 {
		t.Errorf("triggers: got %d, want 1", got)
	}
	if !floatEquals(m.Level(), 5) {
		t.Errorf("level: got %v, want recovery 5", m.Level())
	}
}

func TestMeter_RateScaleAppliesToBothRates(t *testing.T) {
	cfg := testMeterConfig()
	cfg.FillRate = 1
	cfg.DrainRate = 1
	cfg.RateScale = 2
	m := NewMeter(cfg, (&signalRecorder{}).emit)

	start := time.Now()
	m.Prime(start)

	m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(time.Second)))
	if !floatEquals(m.Level(), 8) {
		t.Errorf("scaled drain: got level %v, want 8", m.Level())
	}
	m.HandleEvent(boolUpdate("Trainer/EyeContact", true, start.Add(2*time.Second)))
	if !floatEquals(m.Level(), 10) {
		t.Errorf("scaled fill: got level %v, want clamped 10", m.Level())
	}
}

func TestMeter_UnprimedFirstUpdateOnlySetsBaseline(t *testing.T) {
	rec := &signalRecorder{}
	m := NewMeter(testMeterConfig(), rec.emit)

	start := time.Now()
	m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start))
	if !floatEquals(m.Level(), 10) {
		t.Errorf("level after baseline update: got %v, want 10", m.Level())
	}
	m.HandleEvent(boolUpdate("Trainer/EyeContact", false, start.Add(2*time.Second)))
	if !floatEquals(m.Level(), 8) {
		t.Errorf("level after second update: got %v, want 8", m.Level())
	}
}
