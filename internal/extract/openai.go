// Package extract wraps the chat-completion call that answers one variable
// against a set of excerpts. Prompt construction and response parsing have
// no invariants of their own; the retry classification is what the pipeline
// depends on.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client calls the OpenAI chat completions API for variable extraction.
type Client struct {
	client *openai.Client
	model  string

	// Stats aggregates call latencies and token usage for /api/stats/llm.
	Stats *LLMStats
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
		Stats:  NewLLMStats(time.Hour),
	}
}

func (c *Client) Model() string { return c.model }

// Query sends the instruction prompt with the excerpt payload and returns
// the model's raw answer. respFormat selects json_object or plain text
// responses; fullText adjusts the system framing when the whole document
// fit the context without excerpt selection.
func (c *Client) Query(ctx context.Context, prompt, respFormat string, fullText bool) (string, error) {
	textLabel := "collection of text excerpts"
	if fullText {
		textLabel = "document"
	}
	system := "Use the provided " + textLabel + " delimited by triple quotes to respond to instructions delimited with XML tags. " +
		"Be precise. Only rely on the provided text."

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if respFormat == "json_object" {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if c.Stats != nil {
		c.Stats.Record(time.Since(start).Milliseconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500) {
			return "", &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return stripCodeBlock(resp.Choices[0].Message.Content), nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient upstream failure worth retrying.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}
