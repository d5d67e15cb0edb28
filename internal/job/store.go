// Package job provides the durable job registry: one JSON record per job,
// lock-guarded read-modify-write mutation, lock-free whole-record reads.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job. Transitions are monotonic:
// pending -> running -> completed|failed, and both terminal states are final.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Control is the cooperative cancellation flag checked by the worker
// between documents and variables.
type Control string

const (
	ControlRun             Control = ""
	ControlCancelRequested Control = "cancel_requested"
	ControlCancelled       Control = "cancelled"
)

// Progress is mutated by the single running worker and read by any number
// of concurrent status pollers.
type Progress struct {
	Message         string `json:"message"`
	CurrentDocument int    `json:"current_document"`
	TotalDocuments  int    `json:"total_documents"`
	CurrentVariable int    `json:"current_variable"`
	TotalVariables  int    `json:"total_variables"`
}

// Job is the persisted record for one extraction run.
type Job struct {
	ID        string         `json:"job_id"`
	Status    Status         `json:"status"`
	Control   Control        `json:"control,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	UserEmail string         `json:"user_email,omitempty"`
	Progress  Progress       `json:"progress"`
	Result    map[string]any `json:"result"`
	Error     string         `json:"error,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Store keeps one JSON file per job under dir. A process-wide mutex
// serializes read-modify-write mutations from the worker against each
// other; records are rewritten atomically (write temp, then rename) so
// pollers always observe either the pre- or post-update record.
type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Create registers a new pending job and returns its ID.
func (s *Store) Create(userEmail string) (string, error) {
	now := time.Now().UTC()
	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		UserEmail: userEmail,
		Progress:  Progress{Message: "Job created"},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// Restore writes a fresh pending record for a known job ID, used when a
// staged job directory is reprocessed after its record expired. An
// existing record is left untouched.
func (s *Store) Restore(id, userEmail string) error {
	if j, err := s.Get(id); err != nil {
		return err
	} else if j != nil {
		return nil
	}
	now := time.Now().UTC()
	j := &Job{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		UserEmail: userEmail,
		Progress:  Progress{Message: "Job restored"},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(j)
}

// Get loads a job record. Missing jobs return (nil, nil).
func (s *Store) Get(id string) (*Job, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

// ProgressUpdate carries the fields to merge into a job's progress; nil
// fields are left unchanged.
type ProgressUpdate struct {
	Message         *string
	CurrentDocument *int
	TotalDocuments  *int
	CurrentVariable *int
	TotalVariables  *int
}

// UpdateProgress merges the partial update into the job's progress. The
// status is never touched, so terminal jobs stay terminal.
func (s *Store) UpdateProgress(id string, u ProgressUpdate) error {
	return s.mutate(id, func(j *Job) error {
		if u.Message != nil {
			j.Progress.Message = *u.Message
		}
		if u.CurrentDocument != nil {
			j.Progress.CurrentDocument = *u.CurrentDocument
		}
		if u.TotalDocuments != nil {
			j.Progress.TotalDocuments = *u.TotalDocuments
		}
		if u.CurrentVariable != nil {
			j.Progress.CurrentVariable = *u.CurrentVariable
		}
		if u.TotalVariables != nil {
			j.Progress.TotalVariables = *u.TotalVariables
		}
		return nil
	})
}

// MarkRunning moves a pending job to running.
func (s *Store) MarkRunning(id string) error {
	return s.mutate(id, func(j *Job) error {
		if j.Terminal() {
			return fmt.Errorf("job %s already %s", id, j.Status)
		}
		j.Status = StatusRunning
		return nil
	})
}

// MarkCompleted finalizes a job with its result summary. A job that is
// already terminal is left untouched.
func (s *Store) MarkCompleted(id string, result map[string]any) error {
	return s.mutate(id, func(j *Job) error {
		if j.Terminal() {
			return nil
		}
		j.Status = StatusCompleted
		j.Result = result
		return nil
	})
}

// MarkFailed finalizes a job with the captured error. Partial results, if
// any were persisted by the caller beforehand, are kept on the record.
func (s *Store) MarkFailed(id string, errMsg string) error {
	return s.mutate(id, func(j *Job) error {
		if j.Terminal() {
			return nil
		}
		j.Status = StatusFailed
		j.Error = errMsg
		if j.Control == ControlCancelRequested {
			j.Control = ControlCancelled
		}
		return nil
	})
}

// SetPartialResult records whatever output exists so far without changing
// the job's status; used on the failure path before MarkFailed.
func (s *Store) SetPartialResult(id string, result map[string]any) error {
	return s.mutate(id, func(j *Job) error {
		if j.Terminal() {
			return nil
		}
		j.Result = result
		return nil
	})
}

// RequestCancel flags a non-terminal job for cooperative cancellation.
func (s *Store) RequestCancel(id string) error {
	return s.mutate(id, func(j *Job) error {
		if j.Terminal() {
			return fmt.Errorf("job %s already %s", id, j.Status)
		}
		j.Control = ControlCancelRequested
		return nil
	})
}

// CancelRequested reports whether cancellation has been asked for.
func (s *Store) CancelRequested(id string) bool {
	j, err := s.Get(id)
	return err == nil && j != nil && j.Control == ControlCancelRequested
}

// FindByUser returns all jobs for an email, newest first.
func (s *Store) FindByUser(email string) ([]*Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var jobs []*Job
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		j, err := s.Get(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil || j == nil {
			continue // skip corrupted records
		}
		if j.UserEmail == email {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	return jobs, nil
}

// Cleanup removes job records older than maxAge.
func (s *Store) Cleanup(maxAge time.Duration) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
	return nil
}

var errNotFound = errors.New("job not found")

// IsNotFound reports whether err came from mutating a missing job.
func IsNotFound(err error) bool { return errors.Is(err, errNotFound) }

func (s *Store) mutate(id string, fn func(*Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.Get(id)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("%w: %s", errNotFound, id)
	}
	if err := fn(j); err != nil {
		return err
	}
	j.UpdatedAt = time.Now().UTC()
	return s.write(j)
}

func (s *Store) write(j *Job) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(j.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
