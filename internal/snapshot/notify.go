package snapshot

import (
	"sync"

	"github.com/TimurManjosov/loanrules/internal/telemetry"
)

type subCh = chan string // carries new ETags

// Notifier fans ETag changes out to per-organization subscribers.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[subCh]struct{}
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[subCh]struct{})}
}

// Subscribe registers a listener for orgID and returns its channel and an
// unsubscribe func. Unsubscribing closes the channel and may be called twice.
func (n *Notifier) Subscribe(orgID string) (<-chan string, func()) {
	ch := make(subCh, 1)
	n.mu.Lock()
	if n.subs[orgID] == nil {
		n.subs[orgID] = make(map[subCh]struct{})
	}
	n.subs[orgID][ch] = struct{}{}
	n.mu.Unlock()
	telemetry.SSEClients.Inc()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[orgID], ch)
			if len(n.subs[orgID]) == 0 {
				delete(n.subs, orgID)
			}
			close(ch)
			n.mu.Unlock()
			telemetry.SSEClients.Dec()
		})
	}
	return ch, unsub
}

// Publish notifies all listeners of orgID without blocking. A slow listener
// keeps only the newest ETag.
func (n *Notifier) Publish(orgID, etag string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[orgID] {
		select {
		case ch <- etag:
		default:
			// drop the stale value; only Publish sends and it holds mu
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- etag:
			default:
			}
		}
	}
}

// Subscribers returns the number of listeners for orgID.
func (n *Notifier) Subscribers(orgID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[orgID])
}
