package relevance

import (
	"math"
	"strings"
	"testing"

	"docvar/internal/segment"
)

// unit builds an embedding with a chosen cosine similarity against [1, 0].
func withSimilarity(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

var queryVec = []float32{1, 0}

func TestSelect_AnchorIncludedRegardlessOfScore(t *testing.T) {
	chunks := []segment.Chunk{
		{Text: "the gender of participants was recorded", SequenceID: 0, Embedding: withSimilarity(0)},
		{Text: "unrelated methodology paragraph", SequenceID: 1, Embedding: withSimilarity(0.1)},
	}
	got := Select(chunks, queryVec, "gender", 1, 1000000)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if !strings.Contains(got[0].Text, "gender") {
		t.Errorf("anchor chunk not selected: %q", got[0].Text)
	}
}

func TestSelect_AnchorExemptFromBudget(t *testing.T) {
	chunks := []segment.Chunk{
		{Text: "gender " + strings.Repeat("x", 500), SequenceID: 0, Embedding: withSimilarity(0)},
	}
	got := Select(chunks, queryVec, "gender", 0, 10)
	if len(got) != 1 {
		t.Fatalf("anchor dropped under tiny budget: got %d chunks", len(got))
	}
}

func TestSelect_ThresholdExcludesWeakMatches(t *testing.T) {
	chunks := []segment.Chunk{
		{Text: "strong match", SequenceID: 0, Embedding: withSimilarity(0.9)},
		{Text: "weak match one", SequenceID: 1, Embedding: withSimilarity(0.3)},
		{Text: "weak match two", SequenceID: 2, Embedding: withSimilarity(0.2)},
	}
	got := Select(chunks, queryVec, "absent", 1, 1000000)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0].SequenceID != 0 {
		t.Errorf("selected chunk %d, want the strong match", got[0].SequenceID)
	}
}

func TestSelect_BudgetStopsSelection(t *testing.T) {
	long := strings.Repeat("a", 100)
	chunks := []segment.Chunk{
		{Text: long, SequenceID: 0, Embedding: withSimilarity(0.99)},
		{Text: long, SequenceID: 1, Embedding: withSimilarity(0.95)},
		{Text: long, SequenceID: 2, Embedding: withSimilarity(0.9)},
	}
	// The chunk that crosses the budget is still included; selection stops
	// after it.
	got := Select(chunks, queryVec, "absent", 1, 150)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
}

func TestSelect_MinimumYieldIgnoresThreshold(t *testing.T) {
	chunks := []segment.Chunk{
		{Text: "low one", SequenceID: 0, Embedding: withSimilarity(0.3)},
		{Text: "low two", SequenceID: 1, Embedding: withSimilarity(0.5)},
		{Text: "low three", SequenceID: 2, Embedding: withSimilarity(0.1)},
	}
	got := Select(chunks, queryVec, "absent", 2, 1000000)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	// The two best scores, back in document order.
	if got[0].SequenceID != 0 || got[1].SequenceID != 1 {
		t.Errorf("got chunks %d and %d, want 0 and 1", got[0].SequenceID, got[1].SequenceID)
	}
}

func TestSelect_ResultInDocumentOrder(t *testing.T) {
	chunks := []segment.Chunk{
		{Text: "early but weaker", SequenceID: 0, Embedding: withSimilarity(0.8)},
		{Text: "middle and strongest", SequenceID: 1, Embedding: withSimilarity(0.99)},
		{Text: "late and strong", SequenceID: 2, Embedding: withSimilarity(0.9)},
	}
	got := Select(chunks, queryVec, "absent", 1, 1000000)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].SequenceID < got[i-1].SequenceID {
			t.Fatalf("result out of document order: %d before %d", got[i-1].SequenceID, got[i].SequenceID)
		}
	}
}

func TestSelect_EmptyInput(t *testing.T) {
	if got := Select(nil, queryVec, "anything", 5, 1000); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched lengths", []float32{1, 0}, []float32{1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("got %f, want %f", got, tc.want)
			}
		})
	}
}

func TestCharBudget(t *testing.T) {
	if got := CharBudget("gpt-4o"); got != 128000*4-20000 {
		t.Errorf("gpt-4o budget = %d", got)
	}
	if got := CharBudget("gpt-3.5-turbo"); got != 16385*4-20000 {
		t.Errorf("gpt-3.5-turbo budget = %d", got)
	}
	// Unknown models fall back to the gpt-4o window.
	if got := CharBudget("some-future-model"); got != CharBudget("gpt-4o") {
		t.Errorf("unknown model budget = %d", got)
	}
}
