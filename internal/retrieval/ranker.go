package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the minimal chat-completion surface the ranker needs.
// *openai.Client satisfies it; tests substitute a fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// candidate is one rankable material entry.
type candidate struct {
	// ID is the topic (grammar) or word (vocabulary).
	ID   string
	Text string
}

// Ranker asks a chat model to pick the most relevant materials for an
// utterance. Its answer is advisory: any failure, timeout or malformed
// response falls back to the keyword-ordered pool.
type Ranker struct {
	client  ChatClient
	model   string
	timeout time.Duration
}

// NewRanker creates a semantic ranker with a strict per-call timeout.
func NewRanker(client ChatClient, model string, timeout time.Duration) *Ranker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Ranker{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// Rank returns the identifiers of the top picks, best first. The error
// is informational only; callers fall back on it.
func (r *Ranker) Rank(ctx context.Context, utterance, kind string, candidates []candidate, limit int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var list strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&list, "- %s: %s\n", c.ID, c.Text)
	}

	prompt := fmt.Sprintf(`Given the user input: %q
Select the top %d most relevant %s entries from this list that would help the user improve:
%s
Return ONLY the identifiers before the colons, separated by commas.`, utterance, limit, kind, list.String())

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.1,
		MaxTokens:   100,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rank %s: %w", kind, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("rank %s: empty response", kind)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[strings.ToLower(c.ID)] = true
	}

	var ids []string
	for _, part := range strings.Split(resp.Choices[0].Message.Content, ",") {
		id := strings.ToLower(strings.TrimSpace(part))
		if id == "" || !known[id] {
			continue
		}
		ids = append(ids, id)
		if len(ids) >= limit {
			break
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("rank %s: no usable identifiers in response", kind)
	}
	return ids, nil
}
