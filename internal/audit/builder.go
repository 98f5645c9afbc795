package audit

import (
	"net/http"

	"github.com/rs/zerolog/hlog"
)

// EventBuilder provides a fluent API for constructing audit events.
//
//	event := audit.NewEventBuilder(r, orgID).
//		ForResource(audit.ResourceProgramRule, rule.ID).
//		WithAction(audit.ActionUpserted).
//		WithAfter(saved).
//		Build()
type EventBuilder struct {
	event Event
}

// NewEventBuilder starts an event with the request id and source of r.
func NewEventBuilder(r *http.Request, orgID string) *EventBuilder {
	b := &EventBuilder{event: Event{
		OrgID:      orgID,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Status:     StatusSuccess,
	}}
	if id, ok := hlog.IDFromRequest(r); ok {
		b.event.RequestID = id.String()
	}
	return b
}

// ForResource sets the resource type and ID for the event.
func (b *EventBuilder) ForResource(resourceType, resourceID string) *EventBuilder {
	b.event.ResourceType = resourceType
	b.event.ResourceID = resourceID
	return b
}

// WithAction sets the action for the event.
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithAfter records the stored state after the change.
func (b *EventBuilder) WithAfter(state any) *EventBuilder {
	b.event.After = state
	return b
}

// Result marks the event failed when err is non-nil.
func (b *EventBuilder) Result(err error) *EventBuilder {
	if err != nil {
		b.event.Status = StatusFailure
		b.event.ErrorMessage = err.Error()
	}
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}
