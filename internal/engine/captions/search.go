package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

// --- YouTube Data API v3 types ---

type ytDataSearchResp struct {
	Items []ytDataItem `json:"items"`
}

type ytDataItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
}

// searchURL builds the Data API request; the term is query-encoded.
func (f *Fetcher) searchURL(term string) string {
	params := url.Values{}
	params.Set("key", f.apiKey())
	params.Set("type", "video")
	params.Set("part", "snippet")
	params.Set("videoCaption", "any")
	params.Set("maxResults", strconv.Itoa(f.maxResults()))
	params.Set("q", term)
	return f.SearchAPI + "/search?" + params.Encode()
}

// search returns the video IDs for term, in ranking order.
func (f *Fetcher) search(ctx context.Context, term string) ([]string, error) {
	engine.IncrYouTubeSearch()
	body, err := f.getter().Get(ctx, f.searchURL(term), map[string]string{
		"User-Agent": engine.UserAgentBot,
		"Accept":     "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("youtube data API: %w", err)
	}

	var result ytDataSearchResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode youtube data API: %w", err)
	}

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
	}
	return ids, nil
}

func (f *Fetcher) watchURL(videoID string) string {
	return f.WatchURL + "?v=" + url.QueryEscape(videoID)
}
