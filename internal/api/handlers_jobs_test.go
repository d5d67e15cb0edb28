package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"docvar/internal/config"
	"docvar/internal/job"
)

func newTestServer(t *testing.T) (*Server, *job.Store) {
	t.Helper()
	store, err := job.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(store, nil, nil, log, config.Config{APIKey: "test-key"}), store
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer test-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestJobHandlers_RejectMalformedID(t *testing.T) {
	s, _ := newTestServer(t)

	// Anything that is not a UUID must be rejected before it reaches the
	// store, where the ID becomes a filename.
	for _, id := range []string{"not-a-uuid", "..", "1234", "heartbeat.txt"} {
		if rec := doRequest(t, s, http.MethodGet, "/api/jobs/"+id); rec.Code != http.StatusBadRequest {
			t.Errorf("GET job %q: status %d, want 400", id, rec.Code)
		}
		if rec := doRequest(t, s, http.MethodPost, "/api/jobs/"+id+"/cancel"); rec.Code != http.StatusBadRequest {
			t.Errorf("cancel %q: status %d, want 400", id, rec.Code)
		}
	}
}

func TestJobHandlers_StatusAndCancel(t *testing.T) {
	s, store := newTestServer(t)
	id, err := store.Create("user@example.com")
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/jobs/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint: %d, body %s", rec.Code, rec.Body)
	}
	var got job.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != id || got.Status != job.StatusPending {
		t.Errorf("job = %+v", got)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/jobs/"+id+"/cancel"); rec.Code != http.StatusOK {
		t.Fatalf("cancel endpoint: %d, body %s", rec.Code, rec.Body)
	}
	j, _ := store.Get(id)
	if j.Control != job.ControlCancelRequested {
		t.Errorf("control = %q, want cancel_requested", j.Control)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	if rec := doRequest(t, s, http.MethodGet, "/api/jobs/"+missing); rec.Code != http.StatusNotFound {
		t.Errorf("missing job: status %d, want 404", rec.Code)
	}
}
