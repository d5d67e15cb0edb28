package analyze

import "docvar/internal/embed"

// QuoteAnalyzer extracts verbatim quotes relevant to each variable, one
// spreadsheet row per quote.
type QuoteAnalyzer struct{}

func (a *QuoteAnalyzer) TaskType() string { return TaskQuotes }

func (a *QuoteAnalyzer) ChunkSize() int { return 200 }

// NumExcerpts grows with document length so long documents keep a usable
// evidence pool, capped to protect the context window.
func (a *QuoteAnalyzer) NumExcerpts(pages int) int {
	if pages < 200 {
		return 20 + pages
	}
	return 220
}

func (a *QuoteAnalyzer) OutputPrompt(varName string) string {
	return "Respond with a numbered list of exact quotes. Each quote must appear verbatim in the provided text; include the page attribution given with the excerpt. Do not paraphrase."
}

func (a *QuoteAnalyzer) ResponseFormat() string { return "text" }

func (a *QuoteAnalyzer) Headers() []string {
	return []string{"Variable Name", "Variable Description", "Context", "Quote"}
}

func (a *QuoteAnalyzer) Rows(spec embed.VariableSpec, raw string) [][]string {
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
