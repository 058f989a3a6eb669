package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	YouTubeSearchRequests  atomic.Int64
	YouTubeSearchErrors    atomic.Int64
	WatchPageRequests      atomic.Int64
	CaptionTrackRequests   atomic.Int64
	CaptionExtractFailures atomic.Int64
	LLMCalls               atomic.Int64
	LLMErrors              atomic.Int64
	ChatTurns              atomic.Int64
	ChatToolCalls          atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"youtube_search_requests":  metrics.YouTubeSearchRequests.Load(),
		"youtube_search_errors":    metrics.YouTubeSearchErrors.Load(),
		"watch_page_requests":      metrics.WatchPageRequests.Load(),
		"caption_track_requests":   metrics.CaptionTrackRequests.Load(),
		"caption_extract_failures": metrics.CaptionExtractFailures.Load(),
		"llm_calls":                metrics.LLMCalls.Load(),
		"llm_errors":               metrics.LLMErrors.Load(),
		"chat_turns":               metrics.ChatTurns.Load(),
		"chat_tool_calls":          metrics.ChatToolCalls.Load(),
		"cache_hits":               hits,
		"cache_misses":             misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"youtube_search_requests", "youtube_search_errors",
		"watch_page_requests", "caption_track_requests", "caption_extract_failures",
		"llm_calls", "llm_errors",
		"chat_turns", "chat_tool_calls",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for captions/ and assistant/ sub-packages.
func IncrYouTubeSearch()         { metrics.YouTubeSearchRequests.Add(1) }
func IncrYouTubeSearchError()    { metrics.YouTubeSearchErrors.Add(1) }
func IncrWatchPage()             { metrics.WatchPageRequests.Add(1) }
func IncrCaptionTrack()          { metrics.CaptionTrackRequests.Add(1) }
func IncrCaptionExtractFailure() { metrics.CaptionExtractFailures.Add(1) }
func IncrChatTurn()              { metrics.ChatTurns.Add(1) }
func IncrChatToolCall()          { metrics.ChatToolCalls.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
