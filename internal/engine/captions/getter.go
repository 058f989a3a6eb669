package captions

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/anatolykoptev/go_moments/internal/engine"
)

// maxBodyBytes caps every upstream response (watch pages run ~1-2 MB).
const maxBodyBytes = 8 * 1024 * 1024

// Getter performs a single GET and returns the body of a 2xx response.
// Implementations must not retry.
type Getter interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error)
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL     string
	Code    int
	Snippet string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.Code, e.Snippet)
}

// HTTPGetter is the plain net/http transport.
type HTTPGetter struct {
	Client *http.Client
}

// Get issues the request with the given headers.
func (g HTTPGetter) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Snippet: string(snippet)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// BrowserGetter sends requests through the go-stealth client (Chrome TLS
// fingerprint, optional proxy pool).
type BrowserGetter struct {
	Client *engine.BrowserClient
}

// Get issues the request with Chrome defaults overlaid by headers.
func (g BrowserGetter) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := engine.ChromeHeaders()
	for k, v := range headers {
		h[k] = v
	}
	data, status, err := g.Client.Do(http.MethodGet, rawURL, h, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{URL: rawURL, Code: status, Snippet: engine.Truncate(string(data), 256)}
	}
	return data, nil
}
