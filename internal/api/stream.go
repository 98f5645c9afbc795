package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const streamHeartbeat = 25 * time.Second

type streamEvent struct {
	ETag string `json:"etag"`
}

// handleRuleStream handles GET /v1/orgs/{orgID}/rules/stream. It sends an
// "init" event with the current ETag, then an "update" event whenever the
// organization's rules change.
func (s *Server) handleRuleStream(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}

	// subscribe first so no change between load and subscribe is missed
	updates, unsub := s.cache.Subscribe(orgID)
	defer unsub()

	rs, err := s.cache.Get(r.Context(), orgID)
	if err != nil {
		hlogWarn(r, err, "rule stream: initial load failed")
		UnavailableError(w, r, "rules could not be loaded")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "init", rs.ETag); err != nil {
		return
	}
	flusher.Flush()

	log := hlog.FromRequest(r)
	log.Debug().Str("org_id", orgID).Msg("rule stream opened")
	defer log.Debug().Str("org_id", orgID).Msg("rule stream closed")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	last := rs.ETag
	for {
		select {
		case <-r.Context().Done():
			return
		case etag, ok := <-updates:
			if !ok {
				return
			}
			if etag == last {
				continue
			}
			last = etag
			if err := writeEvent(w, "update", etag); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event, etag string) error {
	data, err := json.Marshal(streamEvent{ETag: etag})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
