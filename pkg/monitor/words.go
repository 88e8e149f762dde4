package monitor

import (
	"fmt"

	"time"

	"github.com/strayware/go-collar/pkg/event"
	"github.com/strayware/go-collar/pkg/trigger"
)

// WordsConfig configures a stateless word-list monitor. The scold monitor
// watches trainer speech for scolding words; the self-reference monitor
// watches pet speech for first-person pronouns.
type WordsConfig struct {
	Kind trigger.Kind
	// SpeakerRole is whose speech is tested.
	SpeakerRole event.Role
	// TargetRole is the avatar that receives the stimulus.
	TargetRole event.Role

	Words []string
	// WholeWord selects whole-word matching; otherwise substring.
	WholeWord bool
}

// DefaultSelfReferenceWords is the built-in first-person vocabulary.
// Matching runs on normalized text where apostrophes become spaces, so
// "I'm" matches the bare "i" token; "im"/"ill"/"ive" cover engines that
// strip apostrophes themselves.
func DefaultSelfReferenceWords() []string {
	return []string{"i", "im", "ill", "ive", "me", "my", "mine", "myself"}
}

// WordsMonitor emits a trigger the moment a configured word is heard.
// It keeps no state and applies no debounce; burst coalescing is the
// coordinator's job so the policy stays in one place.
type WordsMonitor struct {
	cfg     WordsConfig
	matcher *Matcher
	emit    EmitFunc
}

// NewWords creates a word-list monitor.
func NewWords(cfg WordsConfig, emit EmitFunc) *WordsMonitor {
	return &WordsMonitor{
		cfg:     cfg,
		matcher: NewMatcher(cfg.Words, cfg.WholeWord),
		emit:    emit,
	}
}

// Name implements Monitor.
func (m *WordsMonitor) Name() string { return m.cfg.Kind.String() }

// HandleEvent implements Monitor.
func (m *WordsMonitor) HandleEvent(ev event.Event) {
	e, ok := ev.(event.SpeechEvent)
	if !ok || e.Role != m.cfg.SpeakerRole {
		return
	}
	word, ok := m.matcher.Match(e.Text)
	if !ok {
		return
	}
	m.emit(trigger.Signal{
		Kind:     m.cfg.Kind,
		Role:     m.cfg.TargetRole,
		Severity: 1.0,
		At:       e.When(),
		Detail:   fmt.Sprintf("word=%s", word),
	})
}

// Tick implements Monitor; the words monitor has no timers.
func (m *WordsMonitor) Tick(time.Time) {}

// NextWake implements Monitor.
func (m *WordsMonitor) NextWake(time.Time) (time.Time, bool) {
	return time.Time{}, false
}

// Status implements Monitor.
func (m *WordsMonitor) Status() Status {
	return Status{Name: m.Name(), Detail: "listening"}
}
