package embed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"docvar/internal/segment"
)

type fakeClient struct {
	calls       int
	batchSizes  []int
	failBatches bool // reject any request with more than one text
}

func (f *fakeClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.failBatches && len(texts) > 1 {
		return nil, errors.New("batch rejected")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func testBuilder(t *testing.T, client Client, budget int) *IndexBuilder {
	t.Helper()
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// No encoder: countTokens uses the character estimate, which keeps the
	// batching assertions deterministic.
	return &IndexBuilder{
		client:      client,
		cache:       cache,
		tokenBudget: budget,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testChunks(texts ...string) []segment.Chunk {
	chunks := make([]segment.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = segment.Chunk{Text: text, SequenceID: i, Pages: []int{i + 1}}
	}
	return chunks
}

func TestIndex_AssignsEmbeddings(t *testing.T) {
	client := &fakeClient{}
	b := testBuilder(t, client, TokenBudget)
	chunks := testChunks("first chunk text", "second chunk", "third")

	out, err := b.Index(context.Background(), "doc", chunks)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(chunks) {
		t.Fatalf("got %d chunks, want %d", len(out), len(chunks))
	}
	for i, c := range out {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
		if c.Embedding[0] != float32(len(chunks[i].Text)) {
			t.Errorf("chunk %d embedding misaligned with its text", i)
		}
		if c.SequenceID != i {
			t.Errorf("chunk %d sequence id changed to %d", i, c.SequenceID)
		}
	}
	// Input slice is not mutated.
	for i, c := range chunks {
		if c.Embedding != nil {
			t.Errorf("input chunk %d was mutated", i)
		}
	}
}

func TestIndex_WarmCacheSkipsService(t *testing.T) {
	client := &fakeClient{}
	b := testBuilder(t, client, TokenBudget)
	chunks := testChunks("alpha text", "beta text")

	first, err := b.Index(context.Background(), "warm", chunks)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterCold := client.calls
	if callsAfterCold == 0 {
		t.Fatal("expected service calls on a cold cache")
	}

	second, err := b.Index(context.Background(), "warm", chunks)
	if err != nil {
		t.Fatal(err)
	}
	if client.calls != callsAfterCold {
		t.Errorf("warm cache made %d extra calls", client.calls-callsAfterCold)
	}
	if len(second) != len(first) {
		t.Fatalf("warm result has %d chunks, want %d", len(second), len(first))
	}
	for i := range first {
		if second[i].Text != first[i].Text || len(second[i].Embedding) != len(first[i].Embedding) {
			t.Errorf("warm chunk %d differs from cold result", i)
		}
	}
}

func TestIndex_BatchFailureFallsBackPerItem(t *testing.T) {
	client := &fakeClient{failBatches: true}
	b := testBuilder(t, client, TokenBudget)
	chunks := testChunks("one chunk of text", "another chunk of text")

	out, err := b.Index(context.Background(), "fallback", chunks)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range out {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding after fallback", i)
		}
	}
	// One failed batch call, then one call per item.
	if client.calls != 1+len(chunks) {
		t.Errorf("got %d calls, want %d", client.calls, 1+len(chunks))
	}
	for _, size := range client.batchSizes[1:] {
		if size != 1 {
			t.Errorf("fallback batch size %d, want 1", size)
		}
	}
}

func TestPackBatches(t *testing.T) {
	b := testBuilder(t, &fakeClient{}, 10)

	// Each 20-char text estimates to 5 tokens, so two fit per batch.
	text := "aaaaaaaaaaaaaaaaaaaa"
	batches := b.packBatches([]string{text, text, text, text, text})
	want := []int{2, 2, 1}
	if len(batches) != len(want) {
		t.Fatalf("got %d batches, want %d", len(batches), len(want))
	}
	for i, batch := range batches {
		if len(batch) != want[i] {
			t.Errorf("batch %d has %d texts, want %d", i, len(batch), want[i])
		}
	}
}

func TestPackBatches_OversizedTextGetsOwnBatch(t *testing.T) {
	b := testBuilder(t, &fakeClient{}, 10)

	big := make([]byte, 100) // estimates to 25 tokens, over budget alone
	for i := range big {
		big[i] = 'b'
	}
	batches := b.packBatches([]string{"aaaa", string(big), "cccc"})
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[1]) != 1 || batches[1][0] != string(big) {
		t.Errorf("oversized text not isolated: %v", batches[1])
	}
}

func TestEmbedVariables(t *testing.T) {
	client := &fakeClient{}
	b := testBuilder(t, client, TokenBudget)
	specs := []VariableSpec{
		{Name: "gender", Description: "gender of participants"},
		{Name: "sample size"},
	}

	out, err := b.EmbedVariables(context.Background(), specs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(out))
	}
	if client.calls != 2 {
		t.Errorf("got %d calls, want one per variable", client.calls)
	}
	for _, spec := range specs {
		ve, ok := out[spec.Name]
		if !ok {
			t.Errorf("missing embedding for %q", spec.Name)
			continue
		}
		if ve.Spec.Name != spec.Name || len(ve.Embedding) == 0 {
			t.Errorf("bad entry for %q: %+v", spec.Name, ve)
		}
	}
}

func TestVariablePrompt(t *testing.T) {
	cases := []struct {
		spec VariableSpec
		want string
	}{
		{VariableSpec{Name: "gender"}, "gender"},
		{VariableSpec{Name: "gender", Description: "participant gender"}, "gender: 'participant gender'"},
		{
			VariableSpec{Name: "gender", Description: "participant gender", Context: "clinical trials"},
			"gender: 'participant gender'. Context: clinical trials",
		},
	}
	for _, tc := range cases {
		if got := VariablePrompt(tc.spec); got != tc.want {
			t.Errorf("VariablePrompt(%+v) = %q, want %q", tc.spec, got, tc.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/uploads/j1/Policy Report.pdf", "Policy_Report"},
		{"notes.txt", "notes"},
		{"weird/näme (v2).docx", "n_me__v2_"},
	}
	for _, tc := range cases {
		if got := Fingerprint(tc.path); got != tc.want {
			t.Errorf("Fingerprint(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
