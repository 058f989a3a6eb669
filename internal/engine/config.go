package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeAPIBase      string        // Data API v3 base, without trailing slash
	YouTubeWatchURL     string        // watch page base, "?v=" is appended
	CaptionMaxResults   int           // search maxResults (3)
	CaptionExtractor    string        // "pattern" (default) or "player"
	CaptionLangs        []string      // track preference for the player extractor
	CaptionFetchTimeout time.Duration // 0 = no timeout on outbound calls
	StealthEnabled      bool

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	ChatMaxToolRounds int
	ChatRatePerMin    int

	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int

	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	DatabaseURL          string
	SQLitePath           string

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = plain net/http transport
	LLMClient     *llm.Client    // nil = search-term suggestions disabled
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages (captions, assistant).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
