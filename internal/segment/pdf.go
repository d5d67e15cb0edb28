package segment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFReader streams a PDF as lines with real page numbers. Headings are
// reconstructed from the embedded outline when one exists; otherwise lines
// set well above the body font size are treated as headings.
type PDFReader struct{}

func (r *PDFReader) Read(path string) (string, []Line, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	outline := collectOutline(reader.Outline(), 1, map[string]int{})
	title := strings.TrimSpace(reader.Outline().Title)
	if title == "" {
		title = titleFromPath(path)
	}

	var lines []Line
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows := pageRows(page)
		body := bodyFontSize(rows)
		for _, row := range rows {
			text := strings.TrimSpace(row.text)
			if text == "" {
				continue
			}
			level := 0
			if len(outline) > 0 {
				level = outline[normalizeHeading(text)]
			} else if looksLikeHeading(text, row.fontSize, body) {
				level = headingLevelFromSize(row.fontSize, body)
			}
			lines = append(lines, Line{Text: text, Page: i, HeadingLevel: level})
		}
	}
	return title, lines, nil
}

// collectOutline flattens the bookmark tree into title -> depth.
func collectOutline(node pdflib.Outline, depth int, acc map[string]int) map[string]int {
	for _, child := range node.Child {
		if t := normalizeHeading(child.Title); t != "" {
			if _, seen := acc[t]; !seen && depth <= 6 {
				acc[t] = depth
			}
		}
		collectOutline(child, depth+1, acc)
	}
	return acc
}

func normalizeHeading(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

type pdfRow struct {
	y        float64
	text     string
	fontSize float64
}

// pageRows groups the page's positioned text fragments into visual lines.
func pageRows(page pdflib.Page) []pdfRow {
	content := page.Content()
	if len(content.Text) == 0 {
		return nil
	}

	texts := make([]pdflib.Text, len(content.Text))
	copy(texts, content.Text)
	sort.SliceStable(texts, func(i, j int) bool {
		if math.Abs(texts[i].Y-texts[j].Y) > 2 {
			return texts[i].Y > texts[j].Y // PDF Y grows upward
		}
		return texts[i].X < texts[j].X
	})

	var rows []pdfRow
	var cur strings.Builder
	curY := texts[0].Y
	curSize := 0.0
	flush := func() {
		if cur.Len() > 0 {
			rows = append(rows, pdfRow{y: curY, text: cur.String(), fontSize: curSize})
		}
		cur.Reset()
		curSize = 0
	}
	for _, t := range texts {
		if math.Abs(t.Y-curY) > 2 {
			flush()
			curY = t.Y
		}
		cur.WriteString(t.S)
		if t.FontSize > curSize {
			curSize = t.FontSize
		}
	}
	flush()
	return rows
}

// bodyFontSize returns the most common font size on the page.
func bodyFontSize(rows []pdfRow) float64 {
	counts := make(map[float64]int)
	for _, row := range rows {
		counts[row.fontSize] += len(row.text)
	}
	best, bestCount := 0.0, 0
	for size, n := range counts {
		if n > bestCount {
			best, bestCount = size, n
		}
	}
	return best
}

func looksLikeHeading(text string, size, body float64) bool {
	if body <= 0 || len(text) > 120 {
		return false
	}
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, ",") {
		return false
	}
	return size > body*1.15
}

// headingLevelFromSize maps relative font size to a heading depth: the
// bigger the type, the shallower the heading.
func headingLevelFromSize(size, body float64) int {
	switch ratio := size / body; {
	case ratio >= 1.6:
		return 1
	case ratio >= 1.35:
		return 2
	default:
		return 3
	}
}
