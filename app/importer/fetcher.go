package importer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Fetcher is the shared fetch primitive all decoders read content through.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// NormalizeURL ensures a URL carries a scheme and rewrites webcal to http.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(strings.ToLower(raw), "webcal:") {
		return "http:" + raw[len("webcal:"):]
	}
	if !strings.Contains(raw, "://") {
		return "http://" + raw
	}
	return raw
}

// Read fetches the content behind a URL. HTTP(S) URLs are fetched with GET,
// honoring basic-auth credentials embedded in the URL; a 401 response raises
// ErrAuthRequired. Anything else falls back to a generic stream read.
func (f *Fetcher) Read(ctx context.Context, rawURL string) ([]byte, error) {
	normalized := NormalizeURL(rawURL)

	u, err := url.Parse(normalized)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return readStream(normalized)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalized, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	if u.User != nil {
		password, _ := u.User.Password()
		req.SetBasicAuth(u.User.Username(), password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", ErrAuthRequired, u.Redacted())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error fetching %s: %d %s", u.Redacted(), resp.StatusCode, resp.Status)
	}

	body := decodeCharset(resp.Body, resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// readStream is the generic fallback for non-HTTP inputs, e.g. local files.
func readStream(raw string) ([]byte, error) {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
		path = u.Path
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", raw, err)
	}
	return data, nil
}

// decodeCharset transcodes declared non-UTF-8 response bodies to UTF-8.
func decodeCharset(r io.Reader, contentType string) io.Reader {
	if contentType == "" {
		return r
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}
