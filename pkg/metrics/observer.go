package metrics

import "time"

// Event names emitted by the invoker, router and loop.
const (
	EventToolStarted    = "tool_started"
	EventToolPoll       = "tool_poll"
	EventToolFinished   = "tool_finished"
	EventToolArtifact   = "tool_artifact"
	EventRouteMiss      = "route_miss"
	EventRouteError     = "route_error"
	EventReminderFired  = "reminder_fired"
	EventBreakerOpen    = "breaker_open"
	EventBreakerClose   = "breaker_close"
	EventBreakerDenied  = "breaker_denied"
	EventRateLimit      = "rate_limit"
	EventUtteranceEmpty = "utterance_empty"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// OrNoop returns obs, or a NoopObserver when obs is nil.
func OrNoop(obs Observer) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	return obs
}

// MultiObserver fans an event out to several observers.
type MultiObserver struct {
	list []Observer
}

func NewMultiObserver(list ...Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}
