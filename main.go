// go_moments: video moment search assistant.
//
// Finds YouTube videos for a search term, fetches their caption tracks and lets
// a chat model pick the best moments. Serves the chat over HTTP/websocket and
// exposes provide_video_captions_to_ai, show_video_moments and
// suggest_search_terms as MCP tools.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_moments/internal/assistant"
	"github.com/anatolykoptev/go_moments/internal/chatserver"
	"github.com/anatolykoptev/go_moments/internal/chatstore"
	"github.com/anatolykoptev/go_moments/internal/engine"
	"github.com/anatolykoptev/go_moments/internal/engine/captions"
	"github.com/anatolykoptev/go_moments/internal/momentserver"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	mcpPort := env.Str("MCP_PORT", "8892")
	chatAddr := env.Str("CHAT_ADDR", ":8080")

	initEngine()

	fetcher, err := captions.FromConfig(engine.Cfg)
	if err != nil {
		slog.Error("caption fetcher init failed", slog.Any("error", err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := chatstore.Open(ctx, engine.Cfg.DatabaseURL, engine.Cfg.SQLitePath)
	if err != nil {
		slog.Warn("chat store init failed, chats will not be saved", slog.Any("error", err))
	} else {
		defer store.Close()
	}

	if engine.Cfg.OpenAIAPIKey != "" {
		asst := assistant.New(
			assistant.NewClient(engine.Cfg.OpenAIAPIKey, engine.Cfg.OpenAIBaseURL),
			engine.Cfg.OpenAIModel,
			fetcher,
			assistant.WithMaxToolRounds(engine.Cfg.ChatMaxToolRounds),
		)
		chat := chatserver.New(asst, store, chatserver.Config{
			RatePerMin:   engine.Cfg.ChatRatePerMin,
			AllowOrigins: env.List("CHAT_ALLOW_ORIGINS", ""),
			TurnTimeout:  env.Duration("CHAT_TURN_TIMEOUT", 3*time.Minute),
			SessionTTL:   env.Duration("CHAT_SESSION_TTL", chatserver.DefaultSessionTTL),
		})
		go func() {
			if err := chat.Run(ctx, chatAddr); err != nil {
				slog.Error("chat server failed", slog.Any("error", err))
			}
		}()
	} else {
		slog.Warn("OPENAI_API_KEY not set, chat server disabled")
	}

	slog.Info("starting go_moments",
		slog.String("mcp_port", mcpPort),
		slog.String("chat_addr", chatAddr),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_moments",
		Version: version,
	}, nil)

	momentserver.RegisterTools(server, momentserver.Deps{Captions: fetcher})
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_moments",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return b
}

func initEngine() {
	c := engine.Config{
		YouTubeAPIBase:       env.Str("YOUTUBE_API_BASE", captions.DefaultSearchAPI),
		YouTubeWatchURL:      env.Str("YOUTUBE_WATCH_URL", captions.DefaultWatchURL),
		CaptionMaxResults:    env.Int("CAPTION_MAX_RESULTS", captions.DefaultMaxResults),
		CaptionExtractor:     env.Str("CAPTION_EXTRACTOR", "pattern"),
		CaptionLangs:         env.List("CAPTION_LANGS", "en"),
		CaptionFetchTimeout:  env.Duration("CAPTION_FETCH_TIMEOUT", 0),
		StealthEnabled:       envBool("STEALTH_ENABLED", false),
		OpenAIAPIKey:         env.Str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        env.Str("OPENAI_BASE_URL", ""),
		OpenAIModel:          env.Str("OPENAI_MODEL", "gpt-3.5-turbo"),
		ChatMaxToolRounds:    env.Int("CHAT_MAX_TOOL_ROUNDS", assistant.DefaultMaxToolRounds),
		ChatRatePerMin:       env.Int("CHAT_RATE_PER_MIN", 20),
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 1024),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		SQLitePath:           env.Str("SQLITE_PATH", chatstore.DefaultSQLitePath()),
	}
	c.HTTPClient = &http.Client{
		Timeout: c.CaptionFetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}

	if c.StealthEnabled {
		var opts []stealth.ClientOption
		opts = append(opts, stealth.WithTimeout(15))

		if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
			pool, err := proxypool.NewWebshare(apiKey)
			if err != nil {
				slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
			} else {
				opts = append(opts, stealth.WithProxyPool(pool))
				slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
			}
		}

		bc, err := stealth.NewClient(opts...)
		if err != nil {
			slog.Error("stealth client init failed, using net/http", slog.Any("error", err))
		} else {
			c.BrowserClient = bc
			slog.Info("stealth browser client initialized")
		}
	}

	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		)
	} else {
		slog.Info("LLM_API_KEY not set, suggest_search_terms disabled")
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}
