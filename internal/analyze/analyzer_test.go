package analyze

import (
	"reflect"
	"testing"

	"docvar/internal/embed"
)

func TestForTask(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", TaskQuotes},
		{TaskQuotes, TaskQuotes},
		{TaskDefault, TaskDefault},
		{TaskSummary, TaskSummary},
	}
	for _, tc := range cases {
		a, err := ForTask(tc.in)
		if err != nil {
			t.Errorf("ForTask(%q) error: %v", tc.in, err)
			continue
		}
		if a.TaskType() != tc.want {
			t.Errorf("ForTask(%q).TaskType() = %q, want %q", tc.in, a.TaskType(), tc.want)
		}
	}
	if _, err := ForTask("translate"); err == nil {
		t.Error("expected error for unknown task type")
	}
}

func TestSplitNumbered(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "numbered list",
			in:   "1. First quote here.\n2. Second quote here.\n3. Third.",
			want: []string{"First quote here.", "Second quote here.", "Third."},
		},
		{
			name: "indented numbering",
			in:   "  1. alpha\n  2. beta",
			want: []string{"alpha", "beta"},
		},
		{
			name: "no numbering keeps whole response",
			in:   "a single unnumbered answer",
			want: []string{"a single unnumbered answer"},
		},
		{
			name: "decimal inside a line is not a boundary",
			in:   "1. The rate was 3.5 percent.\n2. Second item.",
			want: []string{"The rate was 3.5 percent.", "Second item."},
		},
		{
			name: "empty response",
			in:   "   ",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitNumbered(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("splitNumbered(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestQuoteAnalyzer_Rows(t *testing.T) {
	a := &QuoteAnalyzer{}
	spec := embed.VariableSpec{Name: "gender", Description: "participant gender", Context: "trials"}

	rows := a.Rows(spec, "1. Quote one [page(s) 2]\n2. Quote two [page(s) 5]")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := []string{"gender", "participant gender", "trials", "Quote one [page(s) 2]"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Errorf("row 0 = %v, want %v", rows[0], want)
	}

	rows = a.Rows(spec, "")
	if len(rows) != 1 || rows[0][3] != noContentRow {
		t.Errorf("empty response rows = %v", rows)
	}
}

func TestDefaultAnalyzer_StripsVariableEcho(t *testing.T) {
	a := &DefaultAnalyzer{}
	spec := embed.VariableSpec{Name: "sample size"}

	rows := a.Rows(spec, "sample size: 140 participants were enrolled")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0][3] != "140 participants were enrolled" {
		t.Errorf("row value = %q", rows[0][3])
	}
}

func TestSummaryAnalyzer_SingleRow(t *testing.T) {
	a := &SummaryAnalyzer{}
	spec := embed.VariableSpec{Name: "funding"}

	rows := a.Rows(spec, "1. part one\n2. part two")
	if len(rows) != 1 {
		t.Fatalf("summary produced %d rows, want 1", len(rows))
	}

	rows = a.Rows(spec, "  ")
	if rows[0][3] != noContentRow {
		t.Errorf("empty summary row = %q", rows[0][3])
	}
}

func TestNumExcerpts(t *testing.T) {
	q := &QuoteAnalyzer{}
	if got := q.NumExcerpts(5); got != 25 {
		t.Errorf("quotes at 5 pages = %d, want 25", got)
	}
	if got := q.NumExcerpts(199); got != 219 {
		t.Errorf("quotes at 199 pages = %d, want 219", got)
	}
	if got := q.NumExcerpts(1000); got != 220 {
		t.Errorf("quotes at 1000 pages = %d, want cap of 220", got)
	}

	d := &DefaultAnalyzer{}
	if got := d.NumExcerpts(50); got != 40 {
		t.Errorf("default at 50 pages = %d, want 40", got)
	}
	if got := d.NumExcerpts(500); got != 140 {
		t.Errorf("default at 500 pages = %d, want 140", got)
	}
}
