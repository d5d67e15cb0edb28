package api

import (
	"encoding/json"
	"net/http"

	"docvar/internal/job"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// jobIDParam returns the jobID path parameter, rejecting anything that is
// not a UUID so the value is safe to use as a store filename.
func jobIDParam(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	j, err := s.store.Get(jobID)
	if err != nil {
		jsonError(w, "failed to read job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if j == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(j)
}

func (s *Server) handleJobsByUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		jsonError(w, "email query parameter is required", http.StatusBadRequest)
		return
	}
	jobs, err := s.store.FindByUser(email)
	if err != nil {
		jsonError(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jobs": jobs})
}

// handleCancel flags a running job for cooperative cancellation. The worker
// observes the flag between documents and variables, so the stop is not
// immediate.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	if err := s.store.RequestCancel(jobID); err != nil {
		if job.IsNotFound(err) {
			jsonError(w, "job not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"job_id": jobID,
		"status": "cancel_requested",
	})
}
