// Package artifact builds the XLSX result workbook, one sheet per
// document, and splits oversized workbooks by sheet for delivery.
package artifact

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook accumulates result sheets for one job.
type Workbook struct {
	f      *excelize.File
	sheets []string
}

func New() *Workbook {
	return &Workbook{f: excelize.NewFile()}
}

// AddSheet appends one document's result table as a new sheet.
func (w *Workbook) AddSheet(name string, headers []string, rows [][]string) error {
	name = SanitizeSheetName(name, len(w.sheets))
	for _, existing := range w.sheets {
		if existing == name {
			suffix := fmt.Sprintf(" (%d)", len(w.sheets)+1)
			if len(name)+len(suffix) > 31 {
				name = name[:31-len(suffix)]
			}
			name += suffix
			break
		}
	}
	if len(w.sheets) == 0 {
		// Reuse the default sheet excelize creates.
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename first sheet: %w", err)
		}
	} else {
		if _, err := w.f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %q: %w", name, err)
		}
	}
	w.sheets = append(w.sheets, name)

	if err := w.writeRow(name, 1, headers); err != nil {
		return err
	}
	for i, row := range rows {
		if err := w.writeRow(name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// AddMetrics appends the processing-summary sheet: document and page
// counts, elapsed time, and the failed-documents list.
func (w *Workbook) AddMetrics(docs, pages int, elapsed time.Duration, failed []string) error {
	rows := [][]string{
		{"Documents processed", fmt.Sprintf("%d", docs)},
		{"Total pages", fmt.Sprintf("%d", pages)},
		{"Elapsed", elapsed.Round(time.Second).String()},
	}
	if len(failed) > 0 {
		rows = append(rows, []string{"Failed documents", strings.Join(failed, "; ")})
	}
	return w.AddSheet("Metrics", []string{"Metric", "Value"}, rows)
}

func (w *Workbook) writeRow(sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return w.f.SetSheetRow(sheet, cell, &row)
}

// SheetNames returns the sheets added so far, in order.
func (w *Workbook) SheetNames() []string {
	out := make([]string, len(w.sheets))
	copy(out, w.sheets)
	return out
}

// Bytes serializes the workbook.
func (w *Workbook) Bytes() ([]byte, error) {
	if len(w.sheets) == 0 {
		if err := w.AddSheet("Results", []string{"Variable Name", "Response"}, nil); err != nil {
			return nil, err
		}
	}
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SanitizeSheetName clips a document name to the 31-character XLSX limit
// and strips the characters the format forbids. idx disambiguates
// collisions after clipping.
func SanitizeSheetName(name string, idx int) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Sheet %d", idx+1)
	}
	if rs := []rune(name); len(rs) > 31 {
		name = string(rs[:31])
	}
	return name
}

// SplitBySheets rewrites a workbook into the minimum number of parts under
// maxBytes, each part carrying a contiguous run of the original sheets, up
// to maxParts parts. It fails when the workbook has fewer than two sheets.
func SplitBySheets(data []byte, maxBytes int64, maxParts int) ([][]byte, error) {
	src, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook for split: %w", err)
	}
	defer src.Close()

	sheets := src.GetSheetList()
	if len(sheets) < 2 {
		return nil, fmt.Errorf("workbook has %d sheet(s), nothing to split by", len(sheets))
	}

	parts := int((int64(len(data)) + maxBytes - 1) / maxBytes)
	if parts < 2 {
		parts = 2
	}
	if parts > maxParts {
		parts = maxParts
	}
	if parts > len(sheets) {
		parts = len(sheets)
	}

	size := (len(sheets) + parts - 1) / parts
	var out [][]byte
	for start := 0; start < len(sheets); start += size {
		end := start + size
		if end > len(sheets) {
			end = len(sheets)
		}
		part, err := copySheets(src, sheets[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

// copySheets rebuilds the named sheets into a fresh workbook.
func copySheets(src *excelize.File, sheets []string) ([]byte, error) {
	dst := excelize.NewFile()
	defaultSheet := dst.GetSheetName(0)

	for i, name := range sheets {
		if i == 0 {
			if err := dst.SetSheetName(defaultSheet, name); err != nil {
				return nil, err
			}
		} else {
			if _, err := dst.NewSheet(name); err != nil {
				return nil, err
			}
		}
		rows, err := src.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		for r, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			vals := make([]any, len(row))
			for c, v := range row {
				vals[c] = v
			}
			if err := dst.SetSheetRow(name, cell, &vals); err != nil {
				return nil, err
			}
		}
	}

	buf, err := dst.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize part: %w", err)
	}
	return buf.Bytes(), nil
}
