package segment

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownReader streams a markdown file as lines using the goldmark AST.
// ATX/setext headings become heading lines; every other block contributes
// body lines. Pages are estimated by character count.
type MarkdownReader struct{}

func (r *MarkdownReader) Read(path string) (string, []Line, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	title := titleFromPath(path)
	var lines []Line
	var pg paginator

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			t := string(node.Text(src))
			if t == "" {
				continue
			}
			if node.Level == 1 && len(lines) == 0 {
				title = t
			}
			lines = append(lines, Line{Text: t, Page: pg.page(len(t)), HeadingLevel: node.Level})
		default:
			t := blockText(n, src)
			if t == "" {
				continue
			}
			lines = append(lines, Line{Text: t, Page: pg.page(len(t))})
		}
	}
	return title, lines, nil
}

// blockText gets the text content of a goldmark block node, including
// nested inlines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
			buf.WriteByte(' ')
		}
	}
	if buf.Len() == 0 {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t := blockText(c, src); t != "" {
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(t)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
