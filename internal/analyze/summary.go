package analyze

import (
	"strings"

	"docvar/internal/embed"
)

// SummaryAnalyzer produces one synthesized summary per variable instead of
// itemized quotes.
type SummaryAnalyzer struct{}

func (a *SummaryAnalyzer) TaskType() string { return TaskSummary }

func (a *SummaryAnalyzer) ChunkSize() int { return 200 }

func (a *SummaryAnalyzer) NumExcerpts(pages int) int {
	if pages < 100 {
		return 40
	}
	return 40 + pages/5
}

func (a *SummaryAnalyzer) OutputPrompt(varName string) string {
	return "Respond with a single cohesive summary paragraph of everything in the provided text that bears on this variable."
}

func (a *SummaryAnalyzer) ResponseFormat() string { return "text" }

func (a *SummaryAnalyzer) Headers() []string {
	return []string{"Variable Name", "Variable Description", "Context", "Summary"}
}

func (a *SummaryAnalyzer) Rows(spec embed.VariableSpec, raw string) [][]string {
	raw = strings.TrimSpace(stripVariableEcho(spec.Name, raw))
	if raw == "" {
		raw = noContentRow
	}
	return [][]string{{spec.Name, spec.Description, spec.Context, raw}}
}
