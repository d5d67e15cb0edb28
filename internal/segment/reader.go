package segment

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Reader converts one document format into the line stream consumed by
// PackLines.
type Reader interface {
	Read(path string) (title string, lines []Line, err error)
}

// SupportedExtensions lists file extensions the segmenter can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
}

// ForFile returns the reader for a filename.
func ForFile(filename string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return &PDFReader{}, nil
	case ".docx":
		return &DOCXReader{}, nil
	case ".md", ".markdown":
		return &MarkdownReader{}, nil
	case ".html", ".htm":
		return &HTMLReader{}, nil
	case ".txt":
		return &TextReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// charsPerPage approximates a printed page for formats without physical
// pagination, so long markdown/docx documents still hit the section split.
const charsPerPage = 3000

// paginator assigns estimated page numbers by accumulated character count.
type paginator struct {
	chars int
}

func (p *paginator) page(lineLen int) int {
	pg := p.chars/charsPerPage + 1
	p.chars += lineLen
	return pg
}
