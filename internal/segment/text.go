package segment

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// TextReader streams a plain text file: paragraphs are separated by blank
// lines and there are no headings. Form feeds advance the page; otherwise
// pages are estimated by character count.
type TextReader struct{}

func (r *TextReader) Read(path string) (string, []Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open text: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []Line
	var pg paginator
	var current strings.Builder

	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			lines = append(lines, Line{Text: t, Page: pg.page(len(t))})
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "\f") {
			flush()
			// Round the estimate up to the next page boundary.
			pg.chars = (pg.chars/charsPerPage + 1) * charsPerPage
			line = strings.ReplaceAll(line, "\f", " ")
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return "", nil, err
	}
	return titleFromPath(path), lines, nil
}
