// Package relevance ranks indexed chunks against a variable embedding and
// selects a bounded excerpt set for the extraction query.
package relevance

import (
	"math"
	"sort"
	"strings"

	"docvar/internal/segment"
)

// SimilarityThreshold is the minimum cosine similarity for a chunk to be
// included on the similarity path.
const SimilarityThreshold = 0.7

// instructionReserveChars is subtracted from the model's context budget to
// leave room for instructions and the response.
const instructionReserveChars = 20000

// modelContextTokens maps chat models to their context window size.
var modelContextTokens = map[string]int{
	"gpt-4o":        128000,
	"gpt-4o-mini":   128000,
	"gpt-4-turbo":   128000,
	"gpt-4.1":       128000,
	"o4-mini":       128000,
	"gpt-3.5-turbo": 16385,
}

// CharBudget converts a model's context window into the character budget
// available for excerpts (~4 chars per token, minus the instruction
// reservation).
func CharBudget(model string) int {
	tokens, ok := modelContextTokens[model]
	if !ok {
		tokens = modelContextTokens["gpt-4o"]
	}
	return tokens*4 - instructionReserveChars
}

// Select picks the excerpt set for one variable, in priority order:
//
//  1. anchor inclusion: chunks containing the variable name literally are
//     always included, regardless of budget;
//  2. similarity inclusion: remaining chunks in descending cosine
//     similarity, while the score exceeds the threshold and the running
//     character total fits charBudget;
//  3. minimum-yield fallback: if fewer than minExcerpts were selected,
//     keep walking the sorted list ignoring threshold and budget.
//
// The result is re-sorted by sequence ID so excerpts come back in document
// order for heading-grouped formatting.
func Select(chunks []segment.Chunk, varEmbedding []float32, varName string, minExcerpts, charBudget int) []segment.Chunk {
	if len(chunks) == 0 {
		return nil
	}

	selected := make(map[int]struct{})
	var result []segment.Chunk
	totalChars := 0

	for i, c := range chunks {
		if strings.Contains(c.Text, varName) {
			selected[i] = struct{}{}
			result = append(result, c)
			totalChars += len(c.Text)
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(chunks))
	for i, c := range chunks {
		scores[i] = scored{idx: i, score: CosineSimilarity(varEmbedding, c.Embedding)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	for _, s := range scores {
		if _, ok := selected[s.idx]; ok {
			continue
		}
		if s.score <= SimilarityThreshold {
			break
		}
		selected[s.idx] = struct{}{}
		result = append(result, chunks[s.idx])
		totalChars += len(chunks[s.idx].Text)
		if totalChars > charBudget {
			break
		}
	}

	for _, s := range scores {
		if len(result) >= minExcerpts {
			break
		}
		if _, ok := selected[s.idx]; ok {
			continue
		}
		selected[s.idx] = struct{}{}
		result = append(result, chunks[s.idx])
	}

	sort.Slice(result, func(i, j int) bool { return result[i].SequenceID < result[j].SequenceID })
	return result
}

// CosineSimilarity computes the cosine similarity between two vectors,
// returning 0 for mismatched or zero-length inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
