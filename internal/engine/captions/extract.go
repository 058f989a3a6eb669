package captions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoCaptionURL means the watch page carries no usable caption track.
var ErrNoCaptionURL = errors.New("caption track URL not found in watch page")

// Extractor finds the caption track URL inside a watch page body.
// Implementations are tied to the upstream markup; swap them here, not in the fan-out.
type Extractor interface {
	CaptionURL(page []byte) (string, error)
}

// DefaultCaptionPattern matches the timedtext URL embedded in the player JSON.
const DefaultCaptionPattern = `https://www\.youtube\.com/api/timedtext[^"]*`

// PatternExtractor takes the first regexp match and resolves JSON string escapes.
type PatternExtractor struct {
	re *regexp.Regexp
}

// NewPatternExtractor compiles pattern. The match must stop before the closing quote.
func NewPatternExtractor(pattern string) (*PatternExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("caption pattern: %w", err)
	}
	return &PatternExtractor{re: re}, nil
}

// CaptionURL returns the unescaped caption track URL.
func (e *PatternExtractor) CaptionURL(page []byte) (string, error) {
	m := e.re.Find(page)
	if m == nil {
		return "", ErrNoCaptionURL
	}
	return unescapeJSONString(string(m))
}

// unescapeJSONString decodes a JSON string body without its surrounding quotes,
// e.g. `a\u0026b` -> `a&b`. A dangling backslash left by a match that stopped
// at an escaped quote is dropped.
func unescapeJSONString(s string) (string, error) {
	trailing := len(s) - len(strings.TrimRight(s, `\`))
	if trailing%2 == 1 {
		s = s[:len(s)-1]
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return "", fmt.Errorf("unescape caption URL: %w", err)
	}
	return out, nil
}

// --- ytInitialPlayerResponse strategy ---

const playerResponseMarker = "ytInitialPlayerResponse"

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// PlayerResponseExtractor walks the page's <script> elements, decodes the
// embedded player response and picks the best caption track for Langs.
type PlayerResponseExtractor struct {
	Langs []string
}

// CaptionURL returns the base URL of the preferred caption track.
func (e PlayerResponseExtractor) CaptionURL(page []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", ErrNoCaptionURL
			}
			return "", fmt.Errorf("tokenize watch page: %w", z.Err())
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := z.Text()
			idx := bytes.Index(text, []byte(playerResponseMarker))
			if idx < 0 {
				continue
			}
			rest := text[idx+len(playerResponseMarker):]
			start := bytes.IndexByte(rest, '{')
			if start < 0 {
				continue
			}
			raw := extractJSON(rest[start:])
			if raw == nil {
				continue
			}
			var pr playerResponse
			if err := json.Unmarshal(raw, &pr); err != nil {
				return "", fmt.Errorf("decode player response: %w", err)
			}
			if pr.Captions == nil || len(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
				return "", ErrNoCaptionURL
			}
			track, ok := pickBestTrack(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, e.Langs)
			if !ok {
				return "", fmt.Errorf("%w: all tracks require PoToken", ErrNoCaptionURL)
			}
			return track.BaseURL, nil
		}
	}
}

// extractJSON returns the complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}
