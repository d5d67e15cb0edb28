package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docvar/internal/analyze"
	"docvar/internal/embed"
	"docvar/internal/pipeline"
	"docvar/internal/segment"
)

// handleExtract stages a new extraction job: the uploaded documents and a
// JSON list of variables are written into a fresh job directory, and the
// job is handed to the runner. Responds 202 with a poll URL.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size, with headroom for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	email := r.FormValue("email")

	var variables []embed.VariableSpec
	if err := json.Unmarshal([]byte(r.FormValue("variables")), &variables); err != nil {
		jsonError(w, "variables must be a JSON array: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(variables) == 0 {
		jsonError(w, "at least one variable is required", http.StatusBadRequest)
		return
	}
	for _, v := range variables {
		if v.Name == "" {
			jsonError(w, "every variable needs a name", http.StatusBadRequest)
			return
		}
	}

	taskType := r.FormValue("task_type")
	if _, err := analyze.ForTask(taskType); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		jsonError(w, "at least one document is required", http.StatusBadRequest)
		return
	}
	for _, fh := range files {
		name := sanitizeFilename(fh.Filename)
		if !segment.IsSupportedExtension(name) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusBadRequest)
			return
		}
	}

	jobID, err := s.store.Create(email)
	if err != nil {
		jsonError(w, "failed to create job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jobDir := filepath.Join(s.cfg.UploadsDir(), jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		jsonError(w, "failed to stage job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var docPaths []string
	for _, fh := range files {
		name := sanitizeFilename(fh.Filename)
		path := filepath.Join(jobDir, name)
		if err := saveUpload(fh, path, s.cfg.MaxUploadBytes); err != nil {
			_ = os.RemoveAll(jobDir)
			_ = s.store.MarkFailed(jobID, "staging failed")
			jsonError(w, fmt.Sprintf("failed to stage %s: %s", name, err), http.StatusBadRequest)
			return
		}
		docPaths = append(docPaths, path)
	}

	req := &pipeline.Request{
		JobID:     jobID,
		Documents: docPaths,
		Variables: variables,
		TaskType:  taskType,
		Model:     r.FormValue("model"),
		Email:     email,
		Query:     r.FormValue("query"),
	}
	if err := pipeline.WriteRequest(jobDir, req); err != nil {
		jsonError(w, "failed to stage job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.runner.RunAsync(req, jobDir)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":    jobID,
		"documents": len(docPaths),
		"variables": len(variables),
		"poll_url":  fmt.Sprintf("/api/jobs/%s", jobID),
	})
}

// saveUpload streams one multipart file to disk, enforcing the size cap.
func saveUpload(fh *multipart.FileHeader, path string, maxBytes int64) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, maxBytes+1))
	if err != nil {
		return err
	}
	if n > maxBytes {
		return fmt.Errorf("file exceeds max size (%d bytes)", maxBytes)
	}
	return nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
