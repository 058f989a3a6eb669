package captions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

// ErrEmptyCaptions means the track had no text once markup was stripped.
var ErrEmptyCaptions = errors.New("caption track is empty")

// Encode applies the transport encoding: standard base64 over the UTF-8 bytes.
func Encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// Decode reverses Encode.
func Decode(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode captions: %w", err)
	}
	return string(b), nil
}

// downloadCaptions fetches a timedtext track and returns its encoded, tag-free text.
func (f *Fetcher) downloadCaptions(ctx context.Context, trackURL string) (string, error) {
	engine.IncrCaptionTrack()
	body, err := f.getter().Get(ctx, trackURL, map[string]string{
		"User-Agent": engine.UserAgentBot,
	})
	if err != nil {
		return "", fmt.Errorf("caption track: %w", err)
	}
	text := engine.StripMarkup(string(body))
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCaptions
	}
	return Encode(text), nil
}

// captionsFor runs the per-video sub-pipeline: watch page -> track URL -> track.
func (f *Fetcher) captionsFor(ctx context.Context, videoID string) (string, error) {
	engine.IncrWatchPage()
	page, err := f.getter().Get(ctx, f.watchURL(videoID), map[string]string{
		"User-Agent":      engine.RandomUserAgent(),
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	})
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}
	trackURL, err := f.extractor().CaptionURL(page)
	if err != nil {
		return "", err
	}
	return f.downloadCaptions(ctx, trackURL)
}
