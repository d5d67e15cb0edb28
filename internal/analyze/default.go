package analyze

import "docvar/internal/embed"

// DefaultAnalyzer answers each variable with a free-form JSON response,
// split into rows when the model returns a numbered list.
type DefaultAnalyzer struct{}

func (a *DefaultAnalyzer) TaskType() string { return TaskDefault }

func (a *DefaultAnalyzer) ChunkSize() int { return 200 }

func (a *DefaultAnalyzer) NumExcerpts(pages int) int {
	if pages < 100 {
		return 40
	}
	return 40 + pages/5
}

func (a *DefaultAnalyzer) OutputPrompt(varName string) string {
	return "Answer concisely based only on the provided text. If the text contains nothing relevant, say so."
}

func (a *DefaultAnalyzer) ResponseFormat() string { return "json_object" }

func (a *DefaultAnalyzer) Headers() []string {
	return []string{"Variable Name", "Variable Description", "Context", "Response"}
}

func (a *DefaultAnalyzer) Rows(spec embed.VariableSpec, raw string) [][]string {
	raw = stripVariableEcho(spec.Name, raw)
	items := splitNumbered(raw)
	if len(items) == 0 {
		return [][]string{{spec.Name, spec.Description, spec.Context, noContentRow}}
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{spec.Name, spec.Description, spec.Context, item})
	}
	return rows
}
