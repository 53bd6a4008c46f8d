// Package gist fetches broadcast content from a GitHub gist, the drop box a
// daily job updates with either a broadcast script or a list of mp3 links.
package gist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
)

const defaultAPIBaseURL = "https://api.github.com"

// Config holds configuration for the gist content source.
// Required fields:
// - GistID: the gist to read
// Optional fields:
// - Token: a PAT with gist scope, needed only for private gists
// - PreferredFilenames: tried in order before falling back to the first file
// - APIBaseURL: GitHub API base URL (default: "https://api.github.com")
// - HTTPTimeout: per-request timeout (default: 15s)
type Config struct {
	GistID             string
	Token              string
	PreferredFilenames []string
	APIBaseURL         string
	HTTPTimeout        time.Duration
}

// ValidateConfig validates the Config.
func ValidateConfig(config Config) error {
	if config.GistID == "" {
		return fmt.Errorf("gist id is required")
	}
	return nil
}

// NewConfigFromEnv creates a Config from environment variables.
func NewConfigFromEnv() Config {
	cfg := Config{
		GistID:             os.Getenv("CONTENT_GIST_ID"),
		Token:              os.Getenv("CONTENT_GIST_TOKEN"),
		APIBaseURL:         os.Getenv("GIST_API_BASE_URL"),
		PreferredFilenames: []string{"README.md"},
	}
	if timeoutStr := os.Getenv("GIST_HTTP_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.HTTPTimeout = timeout
		}
	}
	return cfg
}

// Client implements the ContentSource interface over the GitHub gist API.
type Client struct {
	gistID     string
	token      string
	preferred  []string
	apiBaseURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client implements the ContentSource interface
var _ repositories.ContentSource = (*Client)(nil)

// NewClient creates a gist content client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	timeout := config.HTTPTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		gistID:     config.GistID,
		token:      config.Token,
		preferred:  config.PreferredFilenames,
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type gistReply struct {
	Files map[string]gistFile `json:"files"`
}

type gistFile struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	RawURL    string `json:"raw_url"`
}

// Latest returns the content of the preferred gist file, falling back to the
// first file. Truncated files are re-fetched whole from their raw URL.
func (c *Client) Latest(ctx context.Context) (string, error) {
	body, err := c.fetch(ctx, c.apiBaseURL+"/gists/"+c.gistID)
	if err != nil {
		return "", err
	}

	var reply gistReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to decode gist reply: %w", err)
	}

	file, ok := pickFile(reply, c.preferred)
	if !ok {
		return "", fmt.Errorf("gist %s has no readable file", c.gistID)
	}

	text := file.Content
	if file.Truncated && file.RawURL != "" {
		c.logger.Info("Gist file truncated, fetching raw content",
			zap.String("filename", file.Filename))
		raw, err := c.fetch(ctx, file.RawURL)
		if err != nil {
			return "", err
		}
		text = string(raw)
	}

	c.logger.Info("Fetched gist content",
		zap.String("filename", file.Filename),
		zap.Int("length", len(text)))
	return text, nil
}

// pickFile tries preferred filenames in order, then falls back to the first
// file in name order so the choice is deterministic.
func pickFile(reply gistReply, preferred []string) (gistFile, bool) {
	for _, name := range preferred {
		if file, ok := reply.Files[name]; ok {
			return file, true
		}
	}

	names := make([]string, 0, len(reply.Files))
	for name := range reply.Files {
		names = append(names, name)
	}
	if len(names) == 0 {
		return gistFile{}, false
	}
	sort.Strings(names)
	return reply.Files[names[0]], true
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gist request: %w", err)
	}
	req.Header.Set("User-Agent", "xiaoai-broadcast")
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gist: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gist reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gist request failed: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
