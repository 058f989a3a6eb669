// Package toolutil provides shared helper functions for go_moments MCP tools.
package toolutil

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

// ClampCount normalises a requested count: n <= 0 gives def, n > max gives max.
func ClampCount(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// TextResult wraps Markdown text as tool content next to the structured output.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Cached returns the cached value for key or runs fetch. A result is stored
// only when fetch reports it cacheable and returns no error.
func Cached[T any](ctx context.Context, key string, fetch func(context.Context) (T, bool, error)) (T, error) {
	if out, ok := engine.CacheLoadJSON[T](ctx, key); ok {
		slog.Debug("tool cache hit", slog.String("key", key))
		return out, nil
	}
	out, cacheable, err := fetch(ctx)
	if err != nil {
		return out, err
	}
	if cacheable {
		engine.CacheStoreJSON(ctx, key, out)
	}
	return out, nil
}
