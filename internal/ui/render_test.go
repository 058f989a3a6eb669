package ui

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

func TestEmbedURL(t *testing.T) {
	tests := []struct {
		name string
		in   engine.VideoData
		want string
	}{
		{"start and end", engine.VideoData{VideoID: "abc", Start: 12.7, End: 29.2}, embedBase + "abc?end=30&start=12"},
		{"end before start", engine.VideoData{VideoID: "abc", Start: 40, End: 10}, embedBase + "abc?start=40"},
		{"negative start", engine.VideoData{VideoID: "abc", Start: -5, End: 3}, embedBase + "abc?end=3&start=0"},
		{"escaped id", engine.VideoData{VideoID: "a/b", Start: 1, End: 2}, embedBase + "a%2Fb?end=2&start=1"},
		{"NaN offsets", engine.VideoData{VideoID: "abc", Start: math.NaN(), End: math.NaN()}, embedBase + "abc?start=0"},
		{"huge end", engine.VideoData{VideoID: "abc", Start: 5, End: 1e300}, embedBase + "abc?end=2147483647&start=5"},
		{"infinite start", engine.VideoData{VideoID: "abc", Start: math.Inf(1), End: math.Inf(1)}, embedBase + "abc?start=2147483647"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmbedURL(tt.in))
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0:00", FormatSeconds(0))
	assert.Equal(t, "0:00", FormatSeconds(-3))
	assert.Equal(t, "1:05", FormatSeconds(65.9))
	assert.Equal(t, "1:01:01", FormatSeconds(3661))
	assert.Equal(t, "0:00", FormatSeconds(math.NaN()))
	assert.Equal(t, "596523:14:07", FormatSeconds(math.Inf(1)))
}

func TestWatchURL_ClampsOffset(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=abc&t=0s", WatchURL(engine.VideoData{VideoID: "abc", Start: math.NaN()}))
	assert.Equal(t, "https://www.youtube.com/watch?v=abc&t=2147483647s", WatchURL(engine.VideoData{VideoID: "abc", Start: 1e20}))
}

func TestRenderHTML(t *testing.T) {
	t.Run("escapes user text", func(t *testing.T) {
		h, err := RenderHTML(Fragment{ID: "u1", Kind: KindUser, Text: "<script>alert(1)</script>"})
		require.NoError(t, err)
		assert.NotContains(t, h, "<script>")
		assert.Contains(t, h, "&lt;script&gt;")
	})

	t.Run("text with options", func(t *testing.T) {
		h, err := RenderHTML(Fragment{
			ID:      "t1",
			Kind:    KindText,
			Text:    "I can find many topics:\n\n[Best knockouts]",
			Options: []string{"Best knockouts"},
			Done:    true,
		})
		require.NoError(t, err)
		assert.Contains(t, h, "<p>I can find many topics:</p>")
		assert.Contains(t, h, `<button type="button" value="Best knockouts">Best knockouts</button>`)
		assert.NotContains(t, h, "<p></p>")
	})

	t.Run("videos", func(t *testing.T) {
		h, err := RenderHTML(Fragment{ID: "v1", Kind: KindVideos, Videos: []engine.VideoData{
			{VideoID: "abc", Title: "Round 1", Start: 12, End: 30, ThumbnailURL: "https://i.ytimg.com/vi/abc/default.jpg"},
		}})
		require.NoError(t, err)
		assert.Contains(t, h, "https://www.youtube.com/embed/abc?end=30&amp;start=12")
		assert.Contains(t, h, "0:12 - 0:30")
		assert.Contains(t, h, "https://i.ytimg.com/vi/abc/default.jpg")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := RenderHTML(Fragment{ID: "x", Kind: "banner"})
		assert.Error(t, err)
	})
}

func TestRenderPage(t *testing.T) {
	h, err := RenderPage([]Fragment{
		{ID: "a", Kind: KindUser, Text: "hi"},
		{ID: "b", Kind: KindCard, Text: "card"},
	})
	require.NoError(t, err)
	assert.Less(t, strings.Index(h, `id="a"`), strings.Index(h, `id="b"`))
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown(Fragment{ID: "c", Kind: KindCard, Text: "Video moments coming soon"})
	require.NoError(t, err)
	assert.Equal(t, "Video moments coming soon", md)

	md, err = Markdown(Fragment{ID: "v", Kind: KindVideos, Videos: []engine.VideoData{
		{VideoID: "abc", Title: "Round 1", Start: 12, End: 30},
		{VideoID: "def", Start: 60, End: 75},
	}})
	require.NoError(t, err)
	assert.Equal(t,
		"1. [Round 1](https://www.youtube.com/watch?v=abc&t=12s) (0:12 - 0:30)\n"+
			"2. [def](https://www.youtube.com/watch?v=def&t=60s) (1:00 - 1:15)",
		md)

	assert.Equal(t, "No moments to show.", VideosMarkdown(nil))
}
