package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"docvar/internal/analyze"
	"docvar/internal/artifact"
	"docvar/internal/deliver"
	"docvar/internal/embed"
	"docvar/internal/extract"
	"docvar/internal/job"
	"docvar/internal/relevance"
	"docvar/internal/segment"
)

// Documents shorter than this are sent to the model whole; the embedding
// and selection stages are skipped entirely.
const fullTextMaxChars = 24000

// Indexer embeds document chunks and variable descriptions.
type Indexer interface {
	Index(ctx context.Context, fingerprint string, chunks []segment.Chunk) ([]segment.Chunk, error)
	EmbedVariables(ctx context.Context, specs []embed.VariableSpec) (map[string]embed.VariableEmbedding, error)
}

// Querier runs one extraction prompt against the chat model.
type Querier interface {
	Query(ctx context.Context, prompt, respFormat string, fullText bool) (string, error)
	Model() string
}

// Deliverer ships the finished artifact to the requester.
type Deliverer interface {
	Deliver(data []byte, recipient, filename string) deliver.Summary
}

// Worker processes a single extraction job end to end: segment each
// document, embed and select excerpts per variable, query the model, and
// assemble the spreadsheet.
type Worker struct {
	store      *job.Store
	indexer    Indexer
	llm        Querier
	dispatcher Deliverer
	log        *slog.Logger

	heartbeatInterval time.Duration
}

func NewWorker(store *job.Store, indexer Indexer, llm Querier, dispatcher Deliverer, heartbeatInterval time.Duration, log *slog.Logger) *Worker {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 10 * time.Second
	}
	return &Worker{
		store:             store,
		indexer:           indexer,
		llm:               llm,
		dispatcher:        dispatcher,
		log:               log,
		heartbeatInterval: heartbeatInterval,
	}
}

// errCancelled marks a cooperative stop requested through the job record.
var errCancelled = fmt.Errorf("cancelled by user")

// Run executes the job described by req, staged under jobDir. Single
// document failures are absorbed into the failed-documents list; only
// errors that make the whole job pointless terminate it.
func (w *Worker) Run(ctx context.Context, req *Request, jobDir string) (err error) {
	log := w.log.With("job_id", req.JobID)
	wb := artifact.New()

	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panic", "panic", r)
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
		if err != nil {
			w.fail(req.JobID, jobDir, wb, err)
		}
	}()

	hb := startHeartbeat(jobDir, w.heartbeatInterval)
	defer hb.Stop()

	if err := w.store.MarkRunning(req.JobID); err != nil {
		return err
	}

	analyzer, err := analyze.ForTask(req.TaskType)
	if err != nil {
		return err
	}

	w.progress(req.JobID, job.ProgressUpdate{
		Message:        ptr("Embedding variable descriptions"),
		TotalDocuments: ptr(len(req.Documents)),
		TotalVariables: ptr(len(req.Variables)),
	})
	varIndex, err := w.indexer.EmbedVariables(ctx, req.Variables)
	if err != nil {
		return fmt.Errorf("embed variables: %w", err)
	}

	model := req.Model
	if model == "" {
		model = w.llm.Model()
	}
	charBudget := relevance.CharBudget(model)
	start := time.Now()
	totalPages := 0
	var failedDocs []string

	for di, docPath := range req.Documents {
		if w.store.CancelRequested(req.JobID) {
			return errCancelled
		}
		name := filepath.Base(docPath)
		w.progress(req.JobID, job.ProgressUpdate{
			Message:         ptr(fmt.Sprintf("Processing %s (document %d of %d)", name, di+1, len(req.Documents))),
			CurrentDocument: ptr(di + 1),
			CurrentVariable: ptr(0),
		})

		title, sections := segment.Segment(docPath, analyzer.ChunkSize())
		for _, sec := range sections {
			if sec.Err != nil {
				log.Error("document unreadable", "document", name, "error", sec.Err)
				failedDocs = append(failedDocs, fmt.Sprintf("%s: %s", name, sec.Err))
				break
			}
			rows, pages, err := w.processSection(ctx, req, analyzer, varIndex, docPath, sec, charBudget)
			if err != nil {
				if err == errCancelled || ctx.Err() != nil {
					return errCancelled
				}
				log.Error("section failed", "document", name, "section", sec.SectionNumber, "error", err)
				failedDocs = append(failedDocs, fmt.Sprintf("%s: %s", name, err))
				break
			}
			totalPages += pages

			sheet := title
			if sheet == "" {
				sheet = strings.TrimSuffix(name, filepath.Ext(name))
			}
			if sec.SectionNumber > 0 {
				sheet = fmt.Sprintf("%s (%d)", sheet, sec.SectionNumber)
			}
			if err := wb.AddSheet(sheet, analyzer.Headers(), rows); err != nil {
				return fmt.Errorf("add sheet %q: %w", sheet, err)
			}
		}
	}

	if len(failedDocs) == len(req.Documents) {
		log.Warn("no document produced results", "failed", len(failedDocs))
	}

	if err := wb.AddMetrics(len(req.Documents)-len(failedDocs), totalPages, time.Since(start), failedDocs); err != nil {
		return fmt.Errorf("metrics sheet: %w", err)
	}
	data, err := wb.Bytes()
	if err != nil {
		return fmt.Errorf("assemble workbook: %w", err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, ResultFile), data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	result := map[string]any{
		"documents":        len(req.Documents) - len(failedDocs),
		"failed_documents": failedDocs,
		"pages":            totalPages,
		"output_bytes":     len(data),
	}
	if req.Email != "" {
		w.progress(req.JobID, job.ProgressUpdate{Message: ptr("Sending results")})
		summary := w.dispatcher.Deliver(data, req.Email, ResultFile)
		result["delivery"] = summary
		if summary.Sent == 0 && summary.Failed > 0 {
			log.Warn("delivery failed for all parts, results kept on disk",
				"parts", summary.Failed, "recipient", req.Email)
		}
	}

	log.Info("job complete", "documents", result["documents"], "pages", totalPages,
		"failed", len(failedDocs), "elapsed", time.Since(start).Round(time.Second).String())
	return w.store.MarkCompleted(req.JobID, result)
}

// processSection runs every variable against one contiguous section and
// returns the accumulated spreadsheet rows.
func (w *Worker) processSection(ctx context.Context, req *Request, analyzer analyze.Analyzer, varIndex map[string]embed.VariableEmbedding, docPath string, sec segment.Section, charBudget int) ([][]string, int, error) {
	fullText := sec.CharCount < fullTextMaxChars

	chunks := sec.Chunks
	if !fullText {
		fp := embed.Fingerprint(docPath)
		if sec.SectionNumber > 0 {
			fp = fmt.Sprintf("%s_%d", fp, sec.SectionNumber)
		}
		var err error
		chunks, err = w.indexer.Index(ctx, fp, sec.Chunks)
		if err != nil {
			return nil, 0, fmt.Errorf("embed document: %w", err)
		}
	}

	var rows [][]string
	for vi, spec := range req.Variables {
		if w.store.CancelRequested(req.JobID) {
			return nil, 0, errCancelled
		}
		w.progress(req.JobID, job.ProgressUpdate{
			Message:         ptr(fmt.Sprintf("Extracting %q (variable %d of %d)", spec.Name, vi+1, len(req.Variables))),
			CurrentVariable: ptr(vi + 1),
		})

		var prompt string
		if fullText {
			prompt = extract.BuildVariableQueryText(req.Query, spec, analyzer.OutputPrompt(spec.Name), sectionText(sec))
		} else {
			sel := relevance.Select(chunks, varIndex[spec.Name].Embedding, spec.Name, analyzer.NumExcerpts(sec.PageCount), charBudget)
			prompt = extract.BuildVariableQuery(req.Query, spec, analyzer.OutputPrompt(spec.Name), sel)
		}

		resp, err := w.queryWithRetry(ctx, prompt, analyzer.ResponseFormat(), fullText)
		if err != nil {
			return nil, 0, fmt.Errorf("variable %q: %w", spec.Name, err)
		}
		rows = append(rows, analyzer.Rows(spec, resp)...)
	}
	return rows, sec.PageCount, nil
}

// queryWithRetry retries transient model errors with jittered backoff.
func (w *Worker) queryWithRetry(ctx context.Context, prompt, respFormat string, fullText bool) (string, error) {
	var resp string
	var err error
	for attempt := range MaxRetries {
		resp, err = w.llm.Query(ctx, prompt, respFormat, fullText)
		if err == nil || !IsRetryable(err) {
			break
		}
		w.log.Warn("retryable model error", "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return resp, err
}

// fail finalizes a job on the error path: the error and stack go to
// error.txt, and whatever rows were assembled so far are persisted as a
// partial result before the status flips to failed.
func (w *Worker) fail(jobID, jobDir string, wb *artifact.Workbook, cause error) {
	detail := fmt.Sprintf("%s\n\n%s", cause, debug.Stack())
	if err := os.WriteFile(filepath.Join(jobDir, ErrorFile), []byte(detail), 0o644); err != nil {
		w.log.Error("write error file", "job_id", jobID, "error", err)
	}

	if sheets := wb.SheetNames(); len(sheets) > 0 {
		if data, err := wb.Bytes(); err == nil {
			partialName := "partial_" + ResultFile
			if err := os.WriteFile(filepath.Join(jobDir, partialName), data, 0o644); err == nil {
				_ = w.store.SetPartialResult(jobID, map[string]any{
					"partial":      true,
					"sheets":       sheets,
					"output_bytes": len(data),
				})
			}
		}
	}

	if err := w.store.MarkFailed(jobID, cause.Error()); err != nil {
		w.log.Error("mark failed", "job_id", jobID, "error", err)
	}
}

func (w *Worker) progress(jobID string, u job.ProgressUpdate) {
	if err := w.store.UpdateProgress(jobID, u); err != nil {
		w.log.Warn("progress update failed", "job_id", jobID, "error", err)
	}
}

func sectionText(sec segment.Section) string {
	parts := make([]string, len(sec.Chunks))
	for i, c := range sec.Chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

func ptr[T any](v T) *T { return &v }
