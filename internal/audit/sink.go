package audit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a sink logging under component=audit.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Write(_ context.Context, e Event) error {
	ev := s.log.Info()
	if e.Status == StatusFailure {
		ev = s.log.Warn().Str("error", e.ErrorMessage)
	}
	ev.Time("occurred_at", e.OccurredAt).
		Str("request_id", e.RequestID).
		Str("org_id", e.OrgID).
		Str("action", e.Action).
		Str("resource_type", e.ResourceType).
		Str("resource_id", e.ResourceID).
		Str("remote_addr", e.RemoteAddr).
		Str("status", e.Status).
		Interface("after", e.After).
		Msg("audit")
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the recorded events in write order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
