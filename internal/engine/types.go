package engine

// --- Caption fetcher types ---

// VideoCandidate is a searched video whose caption track was fetched.
// Captions holds the markup-stripped caption text, base64-encoded for transport.
type VideoCandidate struct {
	VideoID  string `json:"videoId"`
	Captions string `json:"captions"`
}

// SearchQuery is the free-text term handed to the video search endpoint.
type SearchQuery struct {
	Term string `json:"term"`
}

// --- Tool inputs ---

// CaptionsInput is the input for provide_video_captions_to_ai.
type CaptionsInput struct {
	SearchKey string `json:"searchKey" jsonschema:"The YouTube search term used to find relevant videos."`
}

// Thumbnail is a single thumbnail reference.
type Thumbnail struct {
	URL string `json:"url" jsonschema:"Thumbnail image URL"`
}

// Thumbnails groups thumbnail sizes; only the default size is used.
type Thumbnails struct {
	Default Thumbnail `json:"default"`
}

// VideoInformation is one moment as chosen by the model.
type VideoInformation struct {
	VideoID         string     `json:"videoId" jsonschema:"YouTube video ID"`
	VideoTitle      string     `json:"videoTitle" jsonschema:"Video title"`
	BestMomentStart float64    `json:"bestMomentStart" jsonschema:"Start of the best moment, in seconds"`
	BestMomentEnd   float64    `json:"bestMomentEnd" jsonschema:"End of the best moment, in seconds"`
	Thumbnails      Thumbnails `json:"thumbnails"`
}

// MomentsInput is the input for show_video_moments.
type MomentsInput struct {
	VideoInformation []VideoInformation `json:"videoInformation" jsonschema:"Best moments, up to five"`
}

// SuggestInput is the input for suggest_search_terms.
type SuggestInput struct {
	Topic string `json:"topic" jsonschema:"Topic or interest to expand into search terms"`
	Count int    `json:"count,omitempty" jsonschema:"Number of options (default 10, max 20)"`
}

// --- Tool outputs ---

// CaptionsOutput is the structured output for provide_video_captions_to_ai.
// Videos is null when the search itself failed; Searched counts videos the
// search returned before caption filtering.
type CaptionsOutput struct {
	SearchKey string           `json:"searchKey"`
	Searched  int              `json:"searched"`
	Videos    []VideoCandidate `json:"videos"`
}

// VideoData is a presented moment, ready for the player.
type VideoData struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	VideoID      string  `json:"videoId"`
}

// MomentsOutput is the structured output for show_video_moments.
type MomentsOutput struct {
	Videos []VideoData `json:"videos"`
}

// SuggestOutput is the structured output for suggest_search_terms.
type SuggestOutput struct {
	Topic   string   `json:"topic"`
	Options []string `json:"options"`
}

// ToVideoData maps model-chosen moments to player entries.
func ToVideoData(info []VideoInformation) []VideoData {
	out := make([]VideoData, 0, len(info))
	for _, v := range info {
		out = append(out, VideoData{
			Start:        v.BestMomentStart,
			End:          v.BestMomentEnd,
			Title:        v.VideoTitle,
			ThumbnailURL: v.Thumbnails.Default.URL,
			VideoID:      v.VideoID,
		})
	}
	return out
}
