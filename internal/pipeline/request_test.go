package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"docvar/internal/embed"
)

func TestRequest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	req := &Request{
		JobID:     "j-1",
		Documents: []string{"/data/uploads/j-1/study.pdf"},
		Variables: []embed.VariableSpec{{Name: "gender", Description: "participant gender"}},
		TaskType:  "quotes",
		Model:     "gpt-4o",
		Email:     "user@example.com",
	}
	if err := WriteRequest(dir, req); err != nil {
		t.Fatal(err)
	}

	got, err := ReadRequest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.JobID != req.JobID || got.Email != req.Email || got.TaskType != req.TaskType {
		t.Errorf("got %+v", got)
	}
	if len(got.Documents) != 1 || got.Documents[0] != req.Documents[0] {
		t.Errorf("documents = %v", got.Documents)
	}
	if len(got.Variables) != 1 || got.Variables[0].Name != "gender" {
		t.Errorf("variables = %v", got.Variables)
	}
}

func TestReadRequest_Validation(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"missing job id", Request{Documents: []string{"a.txt"}, Variables: []embed.VariableSpec{{Name: "x"}}}},
		{"missing documents", Request{JobID: "j", Variables: []embed.VariableSpec{{Name: "x"}}}},
		{"missing variables", Request{JobID: "j", Documents: []string{"a.txt"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := WriteRequest(dir, &tc.req); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadRequest(dir); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestReadRequest_MissingDirectory(t *testing.T) {
	if _, err := ReadRequest(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing request file")
	}
}

func TestHeartbeat_WritesTimestamps(t *testing.T) {
	dir := t.TempDir()
	hb := startHeartbeat(dir, 5*time.Millisecond)

	path := filepath.Join(dir, HeartbeatFile)
	deadline := time.Now().Add(2 * time.Second)
	var data []byte
	for time.Now().Before(deadline) {
		var err error
		if data, err = os.ReadFile(path); err == nil && len(data) > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	hb.Stop()

	if len(data) == 0 {
		t.Fatal("heartbeat file never appeared")
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		t.Fatalf("heartbeat content %q is not a unix timestamp", data)
	}
	if drift := time.Since(time.Unix(ts, 0)); drift < 0 || drift > time.Minute {
		t.Errorf("timestamp drift %v", drift)
	}
}

func TestHeartbeat_StopTerminates(t *testing.T) {
	hb := startHeartbeat(t.TempDir(), time.Millisecond)
	done := make(chan struct{})
	go func() {
		hb.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
