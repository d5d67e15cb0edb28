package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"docvar/internal/embed"
)

// requestFile is the serialized extraction request staged in a job
// directory; the worker process reads it back on startup.
const requestFile = "request.json"

// ResultFile is the artifact the worker leaves in the job directory on
// success.
const ResultFile = "result.xlsx"

// ErrorFile holds the captured error and stack when the worker fails.
const ErrorFile = "error.txt"

// Request describes one extraction job: the staged document paths and the
// variables to extract from each, in the order supplied.
type Request struct {
	JobID     string               `json:"job_id"`
	Documents []string             `json:"documents"`
	Variables []embed.VariableSpec `json:"variables"`
	TaskType  string               `json:"task_type,omitempty"`
	Model     string               `json:"model,omitempty"`
	Email     string               `json:"email,omitempty"`
	Query     string               `json:"query,omitempty"`
}

// WriteRequest stages a request into the job directory.
func WriteRequest(dir string, req *Request) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, requestFile), data, 0o644)
}

// ReadRequest loads the staged request from a job directory.
func ReadRequest(dir string) (*Request, error) {
	data, err := os.ReadFile(filepath.Join(dir, requestFile))
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.JobID == "" {
		return nil, fmt.Errorf("request has no job id")
	}
	if len(req.Documents) == 0 {
		return nil, fmt.Errorf("request has no documents")
	}
	if len(req.Variables) == 0 {
		return nil, fmt.Errorf("request has no variables")
	}
	return &req, nil
}
