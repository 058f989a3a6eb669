// Package captions turns a search term into videos with transport-encoded caption text.
//
// Pipeline per call: Data API search (maxResults, videoCaption=any) → for every
// result, concurrently: watch page → caption track URL (Extractor) → timedtext
// track → strip markup → base64. Per-video failures drop that video; a search
// failure fails the call. Nothing is retried.
package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go_moments/internal/engine"
)

// Default upstream endpoints.
const (
	DefaultSearchAPI  = "https://www.googleapis.com/youtube/v3"
	DefaultWatchURL   = "https://www.youtube.com/watch"
	DefaultMaxResults = 3
)

// ErrEmptyTerm is returned for a blank search term.
var ErrEmptyTerm = errors.New("search term is empty")

// Fetcher fetches candidate videos and their captions. The zero value is not
// usable; build one with FromConfig or fill SearchAPI and WatchURL.
type Fetcher struct {
	SearchAPI  string
	WatchURL   string
	MaxResults int
	// APIKey is called once per search; the default reads API_TOKEN from the
	// process environment at call time.
	APIKey    func() string
	Extractor Extractor
	Getter    Getter
}

// FromConfig builds a Fetcher from the engine configuration.
func FromConfig(c *engine.Config) (*Fetcher, error) {
	f := &Fetcher{
		SearchAPI:  strings.TrimRight(c.YouTubeAPIBase, "/"),
		WatchURL:   c.YouTubeWatchURL,
		MaxResults: c.CaptionMaxResults,
	}
	if f.SearchAPI == "" {
		f.SearchAPI = DefaultSearchAPI
	}
	if f.WatchURL == "" {
		f.WatchURL = DefaultWatchURL
	}

	switch strings.ToLower(c.CaptionExtractor) {
	case "", "pattern":
		pe, err := NewPatternExtractor(DefaultCaptionPattern)
		if err != nil {
			return nil, err
		}
		f.Extractor = pe
	case "player":
		f.Extractor = PlayerResponseExtractor{Langs: c.CaptionLangs}
	default:
		return nil, fmt.Errorf("unknown caption extractor %q (valid: pattern, player)", c.CaptionExtractor)
	}

	if c.StealthEnabled && c.BrowserClient != nil {
		f.Getter = BrowserGetter{Client: c.BrowserClient}
	} else {
		client := c.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: c.CaptionFetchTimeout}
		}
		f.Getter = HTTPGetter{Client: client}
	}
	return f, nil
}

// FetchVideosWithCaptions returns the searched videos whose captions could be
// fetched, in search order. A search failure returns a nil slice and an error;
// zero search results return an empty, non-nil slice.
func (f *Fetcher) FetchVideosWithCaptions(ctx context.Context, term string) ([]engine.VideoCandidate, error) {
	videos, _, err := f.FetchWithStats(ctx, term)
	return videos, err
}

// FetchWithStats is FetchVideosWithCaptions plus the number of videos the
// search returned, so callers can tell "no results" from "no captions".
func (f *Fetcher) FetchWithStats(ctx context.Context, term string) ([]engine.VideoCandidate, int, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, 0, ErrEmptyTerm
	}

	ids, err := f.search(ctx, term)
	if err != nil {
		engine.IncrYouTubeSearchError()
		slog.Error("captions: search failed", slog.String("term", term), slog.Any("error", err))
		return nil, 0, err
	}

	// Each task owns slots[i]; siblings never cancel each other.
	slots := make([]*engine.VideoCandidate, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(idx int, videoID string) {
			defer wg.Done()
			var captions string
			err := engine.TrackOperation(ctx, "captions:"+videoID, func(ctx context.Context) error {
				var err error
				captions, err = f.captionsFor(ctx, videoID)
				return err
			})
			if err != nil {
				engine.IncrCaptionExtractFailure()
				slog.Warn("captions: video skipped",
					slog.String("id", videoID), slog.Any("error", err))
				return
			}
			slots[idx] = &engine.VideoCandidate{VideoID: videoID, Captions: captions}
		}(i, id)
	}
	wg.Wait()

	videos := make([]engine.VideoCandidate, 0, len(ids))
	for _, v := range slots {
		if v != nil {
			videos = append(videos, *v)
		}
	}
	slog.Info("captions: fetched",
		slog.String("term", term), slog.Int("searched", len(ids)), slog.Int("with_captions", len(videos)))
	return videos, len(ids), nil
}

func (f *Fetcher) apiKey() string {
	if f.APIKey != nil {
		return f.APIKey()
	}
	return env.Str("API_TOKEN", "")
}

func (f *Fetcher) maxResults() int {
	if f.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return f.MaxResults
}

func (f *Fetcher) getter() Getter {
	if f.Getter == nil {
		return HTTPGetter{}
	}
	return f.Getter
}

func (f *Fetcher) extractor() Extractor {
	if f.Extractor == nil {
		pe, _ := NewPatternExtractor(DefaultCaptionPattern)
		return pe
	}
	return f.Extractor
}
