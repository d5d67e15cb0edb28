package extract

import (
	"fmt"
	"strings"

	"docvar/internal/embed"
	"docvar/internal/segment"
)

// DefaultQueryTemplate is the instruction run once per variable. Callers
// may supply their own template with the same placeholders.
const DefaultQueryTemplate = `Identify everything in the provided text that is relevant to the variable "{variable_name}". Variable description: "{variable_description}". Context: "{context}"`

// BuildVariableQuery assembles the full prompt for one variable: the filled
// query template and output-format instruction inside XML tags, followed by
// the excerpt payload in triple quotes.
func BuildVariableQuery(template string, spec embed.VariableSpec, outputPrompt string, excerpts []segment.Chunk) string {
	return BuildVariableQueryText(template, spec, outputPrompt, FormatExcerpts(excerpts))
}

// BuildVariableQueryText is BuildVariableQuery with an already-rendered
// payload, used when a short document is sent whole instead of as excerpts.
func BuildVariableQueryText(template string, spec embed.VariableSpec, outputPrompt, payload string) string {
	if template == "" {
		template = DefaultQueryTemplate
	}
	query := strings.NewReplacer(
		"{variable_name}", spec.Name,
		"{variable_description}", spec.Description,
		"{context}", spec.Context,
	).Replace(template)

	if outputPrompt != "" {
		outputPrompt = " " + outputPrompt
	}
	return fmt.Sprintf("<instructions>%s.%s</instructions> \n\n \"\"\"%s\"\"\"", query, outputPrompt, payload)
}

// FormatExcerpts renders the selected chunks grouped under their heading
// stack, each quote carrying its page attribution. Headings are only
// re-emitted at the level where they change from the previous chunk.
func FormatExcerpts(chunks []segment.Chunk) string {
	var out []string
	var lastHeadings []string

	for _, c := range chunks {
		current := headingList(c.Headings)

		diff := 0
		for diff < len(lastHeadings) && diff < len(current) && lastHeadings[diff] == current[diff] {
			diff++
		}
		if diff < 2 && len(out) > 0 {
			out = append(out, "")
		}
		for i := diff; i < len(current); i++ {
			out = append(out, fmt.Sprintf("%s %s", strings.Repeat("#", i+1), current[i]))
		}
		out = append(out, fmt.Sprintf("• %s [page(s) %s]", c.Text, pageList(c.Pages)))
		lastHeadings = current
	}
	return "Relevant text excerpts organized by headings:\n\n" + strings.Join(out, "\n")
}

// headingList flattens the heading stack into shallow-to-deep order.
func headingList(h map[int]string) []string {
	var out []string
	for lvl := 1; lvl <= 6; lvl++ {
		if t, ok := h[lvl]; ok {
			out = append(out, t)
		}
	}
	return out
}

func pageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
