package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// ErrLLMDisabled is returned when no helper LLM client is configured.
var ErrLLMDisabled = errors.New("llm client not configured")

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// SuggestSearchTerms uses the helper LLM to expand a topic into n search terms.
func SuggestSearchTerms(ctx context.Context, topic string, n int) ([]string, error) {
	if cfg.LLMClient == nil {
		return nil, ErrLLMDisabled
	}
	prompt := fmt.Sprintf(suggestTermsPrompt, n, topic, n)
	metrics.LLMCalls.Add(1)
	raw, err := cfg.LLMClient.Complete(ctx, "", prompt,
		llm.WithChatTemperature(0.7),
		llm.WithChatMaxTokens(400),
	)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return nil, err
	}
	return parseTermList(raw, n)
}

// parseTermList decodes a JSON string array, dropping blanks and duplicates.
func parseTermList(raw string, n int) ([]string, error) {
	raw = stripFences(raw)
	var variants []string
	if err := json.Unmarshal([]byte(raw), &variants); err != nil {
		return nil, fmt.Errorf("suggest: parse failed on %q: %w", raw, err)
	}
	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		v = NormTerm(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
