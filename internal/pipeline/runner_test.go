package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"docvar/internal/embed"
	"docvar/internal/job"
)

func TestRunner_RunsJobsUnderCap(t *testing.T) {
	querier := &fakeQuerier{resp: "1. quote"}
	w, store := newTestWorker(t, querier, &fakeDeliverer{})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewRunner(store, w, 1, time.Hour, log)
	r.Start(context.Background())

	docDir := t.TempDir()
	var ids []string
	for _, name := range []string{"a.txt", "b.txt"} {
		doc := writeDoc(t, docDir, name, "Short document content.")
		id, _ := store.Create("")
		ids = append(ids, id)
		r.RunAsync(&Request{
			JobID:     id,
			Documents: []string{doc},
			Variables: []embed.VariableSpec{{Name: "x"}},
		}, t.TempDir())
	}

	// Stop cancels jobs still waiting for a slot, so wait for both to
	// finish first.
	deadline := time.Now().Add(10 * time.Second)
	for _, id := range ids {
		for {
			j, _ := store.Get(id)
			if j != nil && j.Terminal() {
				if j.Status != job.StatusCompleted {
					t.Errorf("job %s status = %q, error = %q", id, j.Status, j.Error)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s never finished", id)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	r.Stop()
}

func TestRunner_StopWithoutStart(t *testing.T) {
	querier := &fakeQuerier{resp: "1. quote"}
	w, store := newTestWorker(t, querier, &fakeDeliverer{})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewRunner(store, w, 2, time.Hour, log)
	// Stop before Start must not panic or hang.
	r.Stop()
}
