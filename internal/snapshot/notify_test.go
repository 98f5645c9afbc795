package snapshot

import (
	"sync"
	"testing"
	"time"
)

func TestUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier()
	updates, unsub := n.Subscribe("org")

	unsub()

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("Expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for channel close")
	}
	if n.Subscribers("org") != 0 {
		t.Errorf("Expected no subscribers, got %d", n.Subscribers("org"))
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	n := NewNotifier()
	_, unsub := n.Subscribe("org")
	unsub()
	unsub() // must not panic on double close
}

func TestPublishNonBlockingKeepsNewest(t *testing.T) {
	n := NewNotifier()
	updates, unsub := n.Subscribe("org")
	defer unsub()

	done := make(chan struct{})
	go func() {
		n.Publish("org", "etag1")
		n.Publish("org", "etag2")
		n.Publish("org", "etag3")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked on slow subscriber")
	}

	if got := <-updates; got != "etag3" {
		t.Errorf("Expected newest ETag etag3, got %s", got)
	}
}

func TestPublishIsOrgScoped(t *testing.T) {
	n := NewNotifier()
	a, unsubA := n.Subscribe("org-a")
	defer unsubA()
	b, unsubB := n.Subscribe("org-b")
	defer unsubB()

	n.Publish("org-a", "x")

	select {
	case etag := <-a:
		if etag != "x" {
			t.Errorf("Expected x, got %s", etag)
		}
	case <-time.After(time.Second):
		t.Fatal("org-a subscriber did not receive update")
	}
	select {
	case etag := <-b:
		t.Errorf("org-b subscriber should not receive org-a update, got %s", etag)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribersReceiveUpdates(t *testing.T) {
	const numSubscribers = 5
	n := NewNotifier()

	var channels []<-chan string
	for i := 0; i < numSubscribers; i++ {
		ch, unsub := n.Subscribe("org")
		defer unsub()
		channels = append(channels, ch)
	}

	n.Publish("org", "test-etag-123")

	timeout := time.After(time.Second)
	for i, ch := range channels {
		select {
		case etag := <-ch:
			if etag != "test-etag-123" {
				t.Errorf("subscriber %d: expected test-etag-123, got %s", i, etag)
			}
		case <-timeout:
			t.Fatalf("Timeout: subscriber %d did not receive update", i)
		}
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	n := NewNotifier()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			updates, unsub := n.Subscribe("org")
			time.Sleep(time.Millisecond)
			unsub()
			for range updates {
			}
		}()
		go func() {
			defer wg.Done()
			n.Publish("org", "concurrent-etag")
		}()
	}
	wg.Wait()
}
