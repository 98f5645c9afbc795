package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/loanrules/internal/api"
	"github.com/TimurManjosov/loanrules/internal/snapshot"
	"github.com/TimurManjosov/loanrules/internal/store"
)

// NewTestServer builds the API router on an in-memory store, with no rate limit.
func NewTestServer(t *testing.T, adminKey string) (http.Handler, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	server := api.NewServer(api.Options{
		Store:       memStore,
		Cache:       snapshot.NewCache(memStore, time.Minute, zerolog.Nop()),
		AdminAPIKey: adminKey,
		Logger:      zerolog.Nop(),
	})
	return server.Router(), memStore
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedPrograms stores programs for one organization.
func SeedPrograms(ctx context.Context, st store.Store, orgID string, programs []store.Program) error {
	for _, p := range programs {
		_, err := st.UpsertProgram(ctx, store.UpsertProgramParams{
			ID:          p.ID,
			OrgID:       orgID,
			Name:        p.Name,
			Description: p.Description,
			Active:      p.Active,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
