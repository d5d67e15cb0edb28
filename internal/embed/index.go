package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"docvar/internal/segment"
)

// TokenBudget is the upper bound on the summed token count of one
// embedding batch.
const TokenBudget = 8000

// VariableSpec is a user-defined attribute to extract: the name drives
// anchor matching, the optional description and context enrich its
// embedding prompt.
type VariableSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context,omitempty"`
	Group       string `json:"group,omitempty"`
}

// VariableEmbedding pairs a spec with its embedding vector.
type VariableEmbedding struct {
	Spec      VariableSpec
	Embedding []float32
}

// IndexBuilder embeds document chunks and variable specs, batching chunk
// texts under TokenBudget and caching per-document results on disk.
type IndexBuilder struct {
	client      Client
	cache       *Cache
	tokenBudget int
	enc         *tiktoken.Tiktoken
	log         *slog.Logger
}

func NewIndexBuilder(client Client, cacheDir string, log *slog.Logger) (*IndexBuilder, error) {
	cache, err := NewCache(cacheDir)
	if err != nil {
		return nil, err
	}
	b := &IndexBuilder{
		client:      client,
		cache:       cache,
		tokenBudget: TokenBudget,
		log:         log,
	}
	// The fallback heuristic below keeps indexing working when the BPE
	// tables cannot be loaded.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn("tiktoken unavailable, falling back to character estimate", "error", err)
	} else {
		b.enc = enc
	}
	return b, nil
}

// Index returns the chunks with embeddings assigned. A warm cache entry for
// the fingerprint is returned unconditionally with zero service calls;
// otherwise the chunks are embedded in token-bounded batches and the result
// is persisted before returning.
func (b *IndexBuilder) Index(ctx context.Context, fingerprint string, chunks []segment.Chunk) ([]segment.Chunk, error) {
	if cached, ok, err := b.cache.Load(fingerprint); err != nil {
		return nil, fmt.Errorf("embedding cache read: %w", err)
	} else if ok {
		b.log.Info("embedding cache hit", "fingerprint", fingerprint, "chunks", len(cached))
		return cached, nil
	}

	if len(chunks) == 0 {
		return chunks, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var embeddings [][]float32
	for _, batch := range b.packBatches(texts) {
		vecs, err := b.client.CreateEmbeddings(ctx, batch)
		if err != nil {
			b.log.Warn("batch embedding failed, retrying per item", "size", len(batch), "error", err)
			vecs, err = b.embedIndividually(ctx, batch)
			if err != nil {
				return nil, err
			}
		}
		embeddings = append(embeddings, vecs...)
	}

	out := make([]segment.Chunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		out[i].Embedding = embeddings[i]
	}

	if err := b.cache.Store(fingerprint, out); err != nil {
		return nil, fmt.Errorf("embedding cache write: %w", err)
	}
	return out, nil
}

// embedIndividually retries a failed batch one item at a time so a single
// malformed chunk does not block the rest of the batch.
func (b *IndexBuilder) embedIndividually(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vecs, err := b.client.CreateEmbeddings(ctx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("embed item %d of retried batch: %w", i, err)
		}
		out = append(out, vecs[0])
	}
	return out, nil
}

// packBatches greedily bins texts so each batch stays under the token
// budget. A single oversized text gets a batch of its own.
func (b *IndexBuilder) packBatches(texts []string) [][]string {
	var batches [][]string
	var current []string
	currentTokens := 0

	for _, text := range texts {
		tokens := b.countTokens(text)
		if currentTokens+tokens > b.tokenBudget && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, text)
		currentTokens += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (b *IndexBuilder) countTokens(text string) int {
	if b.enc != nil {
		return len(b.enc.Encode(text, nil, nil))
	}
	// ~4 chars per token for English text.
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// EmbedVariables computes one embedding per variable spec from a prompt
// built out of the name plus the optional description and context.
func (b *IndexBuilder) EmbedVariables(ctx context.Context, specs []VariableSpec) (map[string]VariableEmbedding, error) {
	out := make(map[string]VariableEmbedding, len(specs))
	for _, spec := range specs {
		vecs, err := b.client.CreateEmbeddings(ctx, []string{VariablePrompt(spec)})
		if err != nil {
			return nil, fmt.Errorf("embed variable %q: %w", spec.Name, err)
		}
		out[spec.Name] = VariableEmbedding{Spec: spec, Embedding: vecs[0]}
	}
	return out, nil
}

// VariablePrompt builds the embedding prompt for a variable spec.
func VariablePrompt(spec VariableSpec) string {
	var sb strings.Builder
	sb.WriteString(spec.Name)
	if len(spec.Description) > 1 {
		fmt.Fprintf(&sb, ": '%s'", spec.Description)
	}
	if len(spec.Context) > 1 {
		fmt.Fprintf(&sb, ". Context: %s", spec.Context)
	}
	return sb.String()
}
