package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type mockClock struct {
	now time.Time
}

func (m mockClock) Now() time.Time { return m.now }

// blockingSink holds every write until release is closed.
type blockingSink struct {
	MemorySink
	release chan struct{}
}

func (b *blockingSink) Write(ctx context.Context, e Event) error {
	<-b.release
	return b.MemorySink.Write(ctx, e)
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Write(context.Context, Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("disk full")
}

func TestService_FillsDefaultsAndDrainsOnClose(t *testing.T) {
	sink := &MemorySink{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(sink, mockClock{now: at}, 10, zerolog.Nop())

	svc.Log(Event{OrgID: "acme", Action: ActionUpserted, ResourceType: ResourceProgramRule, ResourceID: "r1"})
	svc.Log(Event{OrgID: "acme", Action: ActionDeleted, ResourceType: ResourceProgramRule, ResourceID: "r1",
		Status: StatusFailure, OccurredAt: at.Add(time.Hour)})

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	events := sink.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].OccurredAt.Equal(at) || events[0].Status != StatusSuccess {
		t.Errorf("defaults not applied: %+v", events[0])
	}
	if !events[1].OccurredAt.Equal(at.Add(time.Hour)) || events[1].Status != StatusFailure {
		t.Errorf("explicit fields overwritten: %+v", events[1])
	}
}

func TestService_DropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	svc := NewService(sink, nil, 1, zerolog.Nop())

	// the worker takes at most one event and blocks on it; one more fits
	// the queue, the rest are dropped without blocking
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			svc.Log(Event{ResourceID: "r"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a full queue")
	}

	close(sink.release)
	_ = svc.Close()

	if n := len(sink.Events()); n < 1 || n > 2 {
		t.Errorf("expected 1 or 2 written events, got %d", n)
	}
}

func TestService_SinkErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	sink := &failingSink{}
	svc := NewService(sink, nil, 4, zerolog.New(&buf))

	svc.Log(Event{ResourceType: ResourceProgram, ResourceID: "p1"})
	_ = svc.Close()

	if sink.calls != 1 {
		t.Errorf("expected 1 write attempt, got %d", sink.calls)
	}
	if !bytes.Contains(buf.Bytes(), []byte("disk full")) {
		t.Errorf("sink error not logged: %s", buf.String())
	}
}

func TestEventBuilder(t *testing.T) {
	var got Event
	handler := hlog.RequestIDHandler("request_id", "X-Request-Id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = NewEventBuilder(r, "acme").
			ForResource(ResourceDocumentRule, "d1").
			WithAction(ActionUpserted).
			WithAfter(map[string]int{"targetDocTypeId": 5}).
			Result(errors.New("boom")).
			Build()
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set("User-Agent", "loanrules-cli")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.RequestID == "" {
		t.Error("request id not captured")
	}
	if got.OrgID != "acme" || got.ResourceType != ResourceDocumentRule || got.ResourceID != "d1" {
		t.Errorf("unexpected resource fields: %+v", got)
	}
	if got.RemoteAddr != "192.0.2.10:4000" || got.UserAgent != "loanrules-cli" {
		t.Errorf("source not captured: %+v", got)
	}
	if got.Status != StatusFailure || got.ErrorMessage != "boom" {
		t.Errorf("failure not recorded: %+v", got)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	err := sink.Write(context.Background(), Event{
		OrgID: "acme", Action: ActionDeleted, ResourceType: ResourceProgram, ResourceID: "p1", Status: StatusSuccess,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	for key, want := range map[string]string{
		"component": "audit", "org_id": "acme", "action": ActionDeleted, "resource_id": "p1", "level": "info",
	} {
		if line[key] != want {
			t.Errorf("%s = %v, want %s", key, line[key], want)
		}
	}
}
