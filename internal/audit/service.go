// Package audit records admin changes to programs and rules.
package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Action constants for audit logging
const (
	ActionUpserted = "upserted"
	ActionDeleted  = "deleted"
)

// Resource type constants for audit logging
const (
	ResourceProgram      = "program"
	ResourceProgramRule  = "program_rule"
	ResourceDocumentRule = "document_rule"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Event is one admin change.
type Event struct {
	OccurredAt   time.Time `json:"occurred_at"`
	RequestID    string    `json:"request_id,omitempty"`
	OrgID        string    `json:"org_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	After        any       `json:"after,omitempty"` // stored state after an upsert
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Service queues events and writes them to a Sink from one background worker,
// so request handlers never wait on the sink.
type Service struct {
	sink   Sink
	clock  Clock
	log    zerolog.Logger
	queue  chan Event
	stopCh chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewService starts the background worker. A nil clock uses SystemClock.
func NewService(sink Sink, clock Clock, queueSize int, log zerolog.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{
		sink:   sink,
		clock:  clock,
		log:    log,
		queue:  make(chan Event, queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.log.Error().Err(err).Str("resource_type", event.ResourceType).
			Str("resource_id", event.ResourceID).Msg("audit: failed to write event")
	}
}

// Log queues an event. It never blocks: when the queue is full the event is
// dropped and a warning logged.
func (s *Service) Log(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}

	select {
	case s.queue <- event:
	default:
		s.log.Warn().Str("resource_type", event.ResourceType).Str("resource_id", event.ResourceID).
			Msg("audit: queue full, dropping event")
	}
}

// Close stops the worker after draining queued events. It is safe to call
// more than once.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	<-s.done
	return nil
}
