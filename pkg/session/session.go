// Package session wires the event bus, monitors and trigger coordinator
// into one running engine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/strayware/go-collar/internal/config"
	"github.com/strayware/go-collar/internal/log"
	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/monitor"
	"github.com/strayware/go-collar/pkg/shock"
	"github.com/strayware/go-collar/pkg/trigger"
)

// worker owns one monitor. Events and ticks are handled on a single
// goroutine; the mutex only guards Status reads from the dashboard.
type worker struct {
	mon monitor.Monitor
	sub *event.Subscription

	mu sync.Mutex
}

func (w *worker) handleEvent(ev event.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mon.HandleEvent(ev)
}

func (w *worker) tick(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mon.Tick(now)
}

func (w *worker) nextWake(now time.Time) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mon.NextWake(now)
}

func (w *worker) status() monitor.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mon.Status()
}

// Session is one running engine instance: a bus, a set of monitors and
// a coordinator in front of the stimulus sink. Monitors always run;
// mode toggles are enforced centrally by the coordinator.
type Session struct {
	cfg     *config.Config
	bus     *event.Bus
	coord   *trigger.Coordinator
	workers []*worker

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New assembles a session from config. Nothing runs until Start.
func New(cfg *config.Config, sink shock.Sink) *Session {
	s := &Session{
		cfg: cfg,
		bus: event.NewBus(),
	}

	s.coord = trigger.New(trigger.Config{
		Enabled: map[trigger.Kind]bool{
			trigger.KindFocus:         cfg.Modes.Focus,
			trigger.KindProximity:     cfg.Modes.Proximity,
			trigger.KindCommand:       cfg.Modes.Command,
			trigger.KindScold:         cfg.Modes.Scold,
			trigger.KindSelfReference: cfg.Modes.SelfReference,
			trigger.KindStretch:       cfg.Modes.Stretch,
		},
		Scaling: trigger.Scaling{
			Delay:    cfg.Difficulty.DelayScale,
			Cooldown: cfg.Difficulty.CooldownScale,
			Duration: cfg.Difficulty.DurationScale,
			Strength: cfg.Difficulty.StrengthScale,
		},
		MinInterval: scaleDuration(cfg.MinInterval.Std(), cfg.Difficulty.CooldownScale),
		Targets:     deviceTargets(cfg),
	}, sink)

	emit := func(sig trigger.Signal) {
		s.coord.Submit(context.Background(), sig)
	}

	s.addMonitor(monitor.NewMeter(meterConfig(trigger.KindFocus, cfg.Focus, cfg.Difficulty.RateScale), emit))
	s.addMonitor(monitor.NewMeter(meterConfig(trigger.KindProximity, cfg.Proximity, cfg.Difficulty.RateScale), emit))
	cmdCfg := commandConfig(cfg)
	cmdCfg.Feedback = func(pulses int) {
		s.coord.Pulse(context.Background(), event.RolePet, pulses)
	}
	s.addMonitor(monitor.NewCommand(cmdCfg, emit))
	s.addMonitor(monitor.NewWords(monitor.WordsConfig{
		Kind:        trigger.KindScold,
		SpeakerRole: event.RoleTrainer,
		TargetRole:  event.RolePet,
		Words:       cfg.Scold.Words,
		WholeWord:   cfg.Scold.WholeWord,
	}, emit))
	s.addMonitor(monitor.NewWords(selfReferenceConfig(cfg), emit))
	s.addMonitor(monitor.NewStretch(stretchConfig(cfg), emit))

	return s
}

func (s *Session) addMonitor(m monitor.Monitor) {
	s.workers = append(s.workers, &worker{
		mon: m,
		sub: s.bus.Subscribe(m.Name()),
	})
}

// Bus returns the event bus the adapters publish into.
func (s *Session) Bus() *event.Bus { return s.bus }

// Coordinator returns the trigger coordinator, for mode toggles and the
// outcome feed.
func (s *Session) Coordinator() *trigger.Coordinator { return s.coord }

// Start launches one goroutine per monitor. Meters are primed with the
// start time so their first parameter update measures a real interval.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	start := time.Now()

	for _, w := range s.workers {
		if m, ok := w.mon.(*monitor.MeterMonitor); ok {
			m.Prime(start)
		}
		s.wg.Add(1)
		go s.runWorker(ctx, w)
	}
	log.Info("session: started", "monitors", len(s.workers))
}

// runWorker is the monitor's event loop. A single goroutine delivers
// events and ticks, so each monitor sees a serialized timeline. The
// wake timer is re-armed from NextWake after every step.
func (s *Session) runWorker(ctx context.Context, w *worker) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		var wake <-chan time.Time
		if at, ok := w.nextWake(time.Now()); ok {
			timer.Reset(time.Until(at))
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.sub.C():
			if !ok {
				return
			}
			w.handleEvent(ev)
		case now := <-wake:
			w.tick(now)
		}

		if wake != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// Stop shuts the session down: the coordinator first, so nothing fires
// during teardown, then the monitor goroutines and the bus.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false

	s.coord.Close()
	s.cancel()
	s.bus.Close()
	s.wg.Wait()
	log.Info("session: stopped")
}

// Status snapshots every monitor for the dashboard.
func (s *Session) Status() []monitor.Status {
	out := make([]monitor.Status, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.status())
	}
	return out
}

func deviceTargets(cfg *config.Config) map[event.Role]string {
	targets := make(map[event.Role]string, len(cfg.Device.Targets))
	for role, t := range cfg.Device.Targets {
		targets[event.Role(role)] = t.Code
	}
	return targets
}

func meterConfig(kind trigger.Kind, m config.Meter, rateScale float64) monitor.MeterConfig {
	return monitor.MeterConfig{
		Kind:         kind,
		TargetRole:   event.RolePet,
		Parameter:    m.Parameter,
		FillRate:     m.FillRate,
		DrainRate:    m.DrainRate,
		RateScale:    rateScale,
		Max:          m.Max,
		Recovery:     m.Recovery,
		Staleness:    m.Staleness.Std(),
		PenaltyWords: m.Names,
		PenaltyRole:  event.RoleTrainer,
		Penalty:      m.Penalty,
	}
}

func commandConfig(cfg *config.Config) monitor.CommandConfig {
	rules := make([]monitor.CommandRule, 0, len(cfg.Command.Rules))
	for _, r := range cfg.Command.Rules {
		conds := make([]monitor.Condition, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conds = append(conds, monitor.Condition{Parameter: c.Parameter, Want: c.Value})
		}
		rules = append(rules, monitor.CommandRule{
			Name:       r.Name,
			Phrases:    r.Phrases,
			Conditions: conds,
		})
	}
	return monitor.CommandConfig{
		SpeakerRole:  event.RoleTrainer,
		TargetRole:   event.RolePet,
		Rules:        rules,
		Timeout:      scaleDuration(cfg.Command.Timeout.Std(), cfg.Difficulty.DelayScale),
		ReplaceArmed: cfg.Command.ReplaceArmed,
	}
}

func selfReferenceConfig(cfg *config.Config) monitor.WordsConfig {
	words := cfg.SelfReference.Words
	if len(words) == 0 {
		words = monitor.DefaultSelfReferenceWords()
	}
	return monitor.WordsConfig{
		Kind:        trigger.KindSelfReference,
		SpeakerRole: event.RolePet,
		TargetRole:  event.RolePet,
		Words:       words,
		WholeWord:   cfg.SelfReference.WholeWord,
	}
}

func stretchConfig(cfg *config.Config) monitor.StretchConfig {
	targets := make([]monitor.StretchTarget, 0, len(cfg.Stretch.Targets))
	for _, t := range cfg.Stretch.Targets {
		targets = append(targets, monitor.StretchTarget{Parameter: t.Parameter, Grab: t.Grab})
	}
	return monitor.StretchConfig{
		TargetRole: event.RolePet,
		Targets:    targets,
		Threshold:  cfg.Stretch.Threshold,
		Max:        cfg.Stretch.Max,
		Cooldown:   scaleDuration(cfg.Stretch.Cooldown.Std(), cfg.Difficulty.CooldownScale),
	}
}

func scaleDuration(d time.Duration, scale float64) time.Duration {
	return time.Duration(float64(d) * scale)
}
