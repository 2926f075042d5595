// Package release looks up the public client release for a competition
// episode.
package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultURLTemplate is the episode endpoint; %s is the episode year.
const DefaultURLTemplate = "https://api.battlecode.org/api/episode/e/bc%s/?format=json"

// versionField is the JSON field carrying the version string.
const versionField = "release_version_public"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

// Logger defines the logging interface for the fetcher.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Fetcher queries the episode API.
type Fetcher struct {
	urlTemplate string
	client      *http.Client
	logger      Logger
}

// NewFetcher creates a fetcher. An empty template uses DefaultURLTemplate;
// timeout bounds each request.
func NewFetcher(urlTemplate string, timeout time.Duration) *Fetcher {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Fetcher{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the fetcher.
func (f *Fetcher) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// Version returns the public release version for episode, or "" when the
// lookup fails for any reason. Failures are logged, never returned.
func (f *Fetcher) Version(ctx context.Context, episode string) string {
	v, err := f.lookup(ctx, episode)
	if err != nil {
		f.logger.Debug("release lookup failed", "episode", episode, "error", err)
		return ""
	}
	return v
}

func (f *Fetcher) lookup(ctx context.Context, episode string) (string, error) {
	url := fmt.Sprintf(f.urlTemplate, episode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("requesting %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("response from %s is not valid JSON", url)
	}
	return gjson.GetBytes(body, versionField).String(), nil
}
