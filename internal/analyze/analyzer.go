// Package analyze defines the per-task-type strategy selected once at job
// creation: chunk sizing, excerpt counts, output-format prompt text, and
// response shaping into spreadsheet rows.
package analyze

import (
	"fmt"
	"regexp"
	"strings"

	"docvar/internal/embed"
)

// Analyzer is the variant behavior for one task type. The worker treats it
// as an opaque capability object.
type Analyzer interface {
	TaskType() string
	ChunkSize() int
	NumExcerpts(pages int) int
	OutputPrompt(varName string) string
	ResponseFormat() string
	Headers() []string
	Rows(spec embed.VariableSpec, raw string) [][]string
}

// Task type names accepted at job creation.
const (
	TaskQuotes  = "quotes"
	TaskDefault = "default"
	TaskSummary = "summary"
)

// ForTask returns the analyzer for a task type; an empty type selects the
// quote extractor.
func ForTask(taskType string) (Analyzer, error) {
	switch taskType {
	case "", TaskQuotes:
		return &QuoteAnalyzer{}, nil
	case TaskDefault:
		return &DefaultAnalyzer{}, nil
	case TaskSummary:
		return &SummaryAnalyzer{}, nil
	default:
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}
}

var numberedItemRe = regexp.MustCompile(`(?m)^\s*\d+\.\s*`)

// splitNumbered breaks a numbered-list response into its items. A response
// with no numbering comes back as a single item.
func splitNumbered(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"'`)
	parts := numberedItemRe.Split(raw, -1)
	var items []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	if len(items) == 0 {
		return nil
	}
	if len(parts) <= 1 {
		return []string{strings.TrimSpace(raw)}
	}
	return items
}

// stripVariableEcho removes a leading "name: " echo the model sometimes
// prepends to its answer.
func stripVariableEcho(varName, s string) string {
	if strings.HasPrefix(s, varName+": ") {
		return strings.TrimPrefix(s, varName+": ")
	}
	return s
}

const noContentRow = "No relevant content found."
