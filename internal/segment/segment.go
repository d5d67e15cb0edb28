package segment

import (
	"fmt"
	"strings"
)

// Chunk is a bounded-size run of sentences with page and heading attribution.
// Pages is exactly the set of source pages whose sentences entered Text, and
// Headings is the heading stack in effect when the chunk was closed. A chunk
// is immutable after close except for the embedding assigned by indexing.
type Chunk struct {
	Text       string         `json:"text"`
	Pages      []int          `json:"pages"`
	Headings   map[int]string `json:"headings,omitempty"`
	SequenceID int            `json:"sequence_id"`
	Embedding  []float32      `json:"embedding,omitempty"`
}

// Section is a contiguous run of chunks. Documents longer than
// MaxSectionPages are partitioned into several sections so a single
// section's excerpts stay within a model context window.
type Section struct {
	Chunks        []Chunk
	PageCount     int
	CharCount     int
	SectionNumber int // 0 when the document fits in a single section
	Err           error
}

// Line is one line of the document stream. HeadingLevel 0 means body text;
// 1..6 means the line is a heading at that depth.
type Line struct {
	Text         string
	Page         int
	HeadingLevel int
}

// MaxSectionPages is the page count above which a document is split into
// multiple sections.
const MaxSectionPages = 250

// Segment reads a document and produces its title and ordered sections of
// size-bounded chunks. A document that cannot be opened or parsed yields a
// single section carrying the error; the caller treats that as terminal for
// this document only.
func Segment(path string, maxChunkChars int) (string, []Section) {
	r, err := ForFile(path)
	if err != nil {
		return "", []Section{{Err: err}}
	}
	title, lines, err := r.Read(path)
	if err != nil {
		return title, []Section{{Err: fmt.Errorf("read %s: %w", path, err)}}
	}
	chunks, pageCount, charCount := PackLines(lines, maxChunkChars)
	return title, PartitionSections(chunks, pageCount, charCount)
}

// PackLines walks the line stream, accumulating body text into paragraph
// buffers and packing sentences into chunks of at most maxChunkChars.
// Headings flush the paragraph, close the current chunk so no chunk spans a
// heading, and update the heading stack: all entries at or below the new
// heading's level are discarded before the new entry is inserted. Page
// changes flush the paragraph so each sentence is attributed to the page it
// came from.
func PackLines(lines []Line, maxChunkChars int) ([]Chunk, int, int) {
	if maxChunkChars <= 0 {
		maxChunkChars = 200
	}

	p := newPacker(maxChunkChars)
	var para strings.Builder
	paraPage := 0
	pageCount := 0
	charCount := 0

	flushPara := func() {
		if strings.TrimSpace(para.String()) != "" {
			for _, sent := range SplitSentences(para.String()) {
				p.addSentence(sent, paraPage)
			}
		}
		para.Reset()
	}

	for _, line := range lines {
		if line.Page > pageCount {
			pageCount = line.Page
		}
		charCount += len(line.Text)

		if line.HeadingLevel > 0 {
			flushPara()
			p.close()
			for lvl := range p.headings {
				if lvl >= line.HeadingLevel {
					delete(p.headings, lvl)
				}
			}
			p.headings[line.HeadingLevel] = strings.TrimSpace(line.Text)
			continue
		}

		if paraPage != 0 && line.Page != paraPage {
			flushPara()
		}
		paraPage = line.Page
		para.WriteString(strings.TrimSpace(line.Text))
		para.WriteString(" ")
	}
	flushPara()
	p.close()

	return p.chunks, pageCount, charCount
}

// PartitionSections wraps the chunk list into sections. Documents of up to
// MaxSectionPages pages get a single unnumbered section; longer documents
// are split into ceil(pages/250) contiguous sections whose chunk lists
// concatenate back to the input order.
func PartitionSections(chunks []Chunk, pageCount, charCount int) []Section {
	if pageCount <= MaxSectionPages {
		return []Section{{Chunks: chunks, PageCount: pageCount, CharCount: charCount}}
	}

	parts := (pageCount + MaxSectionPages - 1) / MaxSectionPages
	size := len(chunks) / parts
	if size == 0 {
		size = 1
	}
	subPages := pageCount / parts
	subChars := charCount / parts

	sections := make([]Section, 0, parts)
	start := 0
	for j := 0; j < parts; j++ {
		end := start + size
		if j == parts-1 || end > len(chunks) {
			end = len(chunks)
		}
		sections = append(sections, Section{
			Chunks:        chunks[start:end],
			PageCount:     subPages,
			CharCount:     subChars,
			SectionNumber: j + 1,
		})
		start = end
	}
	// Leftover pages from integer division land on the last section.
	sections[len(sections)-1].PageCount += pageCount - subPages*parts
	sections[len(sections)-1].CharCount += charCount - subChars*parts
	return sections
}

// packer accumulates sentences into the current chunk and closes it when the
// next sentence would exceed the size bound.
type packer struct {
	max      int
	chunks   []Chunk
	cur      strings.Builder
	curPages map[int]struct{}
	headings map[int]string
}

func newPacker(max int) *packer {
	return &packer{
		max:      max,
		curPages: make(map[int]struct{}),
		headings: make(map[int]string),
	}
}

func (p *packer) addSentence(sent string, page int) {
	if p.cur.Len()+len(sent) < p.max {
		p.cur.WriteString(sent)
		p.cur.WriteString(" ")
		p.curPages[page] = struct{}{}
		return
	}
	p.close()
	p.cur.WriteString(sent)
	p.cur.WriteString(" ")
	p.curPages[page] = struct{}{}
}

// close emits the current chunk, snapshotting the heading stack and page set.
func (p *packer) close() {
	text := strings.TrimSpace(p.cur.String())
	if text != "" {
		p.chunks = append(p.chunks, Chunk{
			Text:       text,
			Pages:      sortedPages(p.curPages),
			Headings:   copyHeadings(p.headings),
			SequenceID: len(p.chunks),
		})
	}
	p.cur.Reset()
	p.curPages = make(map[int]struct{})
}

func sortedPages(set map[int]struct{}) []int {
	pages := make([]int, 0, len(set))
	for pg := range set {
		pages = append(pages, pg)
	}
	for i := 1; i < len(pages); i++ {
		for j := i; j > 0 && pages[j-1] > pages[j]; j-- {
			pages[j-1], pages[j] = pages[j], pages[j-1]
		}
	}
	return pages
}

func copyHeadings(h map[int]string) map[int]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[int]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
