// Package momentserver exposes the moment-search functions as MCP tools:
// provide_video_captions_to_ai, show_video_moments, suggest_search_terms.
package momentserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_moments/internal/engine"
	"github.com/anatolykoptev/go_moments/internal/toolutil"
	"github.com/anatolykoptev/go_moments/internal/ui"
)

const (
	maxMoments          = 5
	defaultSuggestCount = 10
	maxSuggestCount     = 20
)

// CaptionFetcher is the caption pipeline as seen by the tools.
type CaptionFetcher interface {
	FetchWithStats(ctx context.Context, term string) ([]engine.VideoCandidate, int, error)
}

// Deps wires the tools to their backends.
type Deps struct {
	Captions CaptionFetcher
	// Suggest expands a topic into search terms; nil uses engine.SuggestSearchTerms.
	Suggest func(ctx context.Context, topic string, n int) ([]string, error)
}

// RegisterTools registers all moment-search tools on the given MCP server.
func RegisterTools(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "provide_video_captions_to_ai",
		Description: engine.CaptionsToolDescription,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, d.provideCaptions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "show_video_moments",
		Description: engine.MomentsToolDescription,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, showMoments)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "suggest_search_terms",
		Description: engine.SuggestToolDescription,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, d.suggestTerms)
}

// provideCaptions returns videos=null when the search itself failed; that
// outcome is not cached.
func (d Deps) provideCaptions(ctx context.Context, _ *mcp.CallToolRequest, input engine.CaptionsInput) (*mcp.CallToolResult, engine.CaptionsOutput, error) {
	term := engine.NormTerm(input.SearchKey)
	if term == "" {
		return nil, engine.CaptionsOutput{}, errors.New("searchKey is required")
	}
	if d.Captions == nil {
		return nil, engine.CaptionsOutput{}, errors.New("caption fetcher not configured")
	}

	cacheKey := engine.CacheKey("captions", strings.ToLower(term))
	out, err := toolutil.Cached(ctx, cacheKey, func(ctx context.Context) (engine.CaptionsOutput, bool, error) {
		videos, searched, err := d.Captions.FetchWithStats(ctx, term)
		if err != nil {
			slog.Warn("provide_video_captions_to_ai: search failed",
				slog.String("term", term), slog.Any("error", err))
			return engine.CaptionsOutput{SearchKey: term}, false, nil
		}
		return engine.CaptionsOutput{SearchKey: term, Searched: searched, Videos: videos}, true, nil
	})
	if err != nil {
		return nil, engine.CaptionsOutput{}, err
	}
	return nil, out, nil
}

func showMoments(_ context.Context, _ *mcp.CallToolRequest, input engine.MomentsInput) (*mcp.CallToolResult, engine.MomentsOutput, error) {
	if len(input.VideoInformation) == 0 {
		return nil, engine.MomentsOutput{}, errors.New("videoInformation is required")
	}
	info := input.VideoInformation
	if len(info) > maxMoments {
		slog.Debug("show_video_moments: trimming moments", slog.Int("got", len(info)))
		info = info[:maxMoments]
	}
	for i, v := range info {
		if strings.TrimSpace(v.VideoID) == "" {
			return nil, engine.MomentsOutput{}, fmt.Errorf("videoInformation[%d]: videoId is required", i)
		}
	}
	out := engine.MomentsOutput{Videos: engine.ToVideoData(info)}
	return toolutil.TextResult(ui.VideosMarkdown(out.Videos)), out, nil
}

func (d Deps) suggestTerms(ctx context.Context, _ *mcp.CallToolRequest, input engine.SuggestInput) (*mcp.CallToolResult, engine.SuggestOutput, error) {
	topic := engine.NormTerm(input.Topic)
	if topic == "" {
		return nil, engine.SuggestOutput{}, errors.New("topic is required")
	}
	n := toolutil.ClampCount(input.Count, defaultSuggestCount, maxSuggestCount)
	suggest := d.Suggest
	if suggest == nil {
		suggest = engine.SuggestSearchTerms
	}

	cacheKey := engine.CacheKey("suggest", strings.ToLower(topic), fmt.Sprint(n))
	out, err := toolutil.Cached(ctx, cacheKey, func(ctx context.Context) (engine.SuggestOutput, bool, error) {
		opts, err := suggest(ctx, topic, n)
		if err != nil {
			return engine.SuggestOutput{}, false, fmt.Errorf("suggest_search_terms: %w", err)
		}
		return engine.SuggestOutput{Topic: topic, Options: opts}, len(opts) > 0, nil
	})
	if err != nil {
		return nil, engine.SuggestOutput{}, err
	}
	return nil, out, nil
}
