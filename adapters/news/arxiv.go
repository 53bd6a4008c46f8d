package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
)

const defaultArxivBaseURL = "http://export.arxiv.org/api/query"

// ArxivConfig holds configuration for the arXiv feed adapter. All fields are
// optional; BaseURL defaults to the public export API.
type ArxivConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

// NewArxivConfigFromEnv creates an ArxivConfig from environment variables.
func NewArxivConfigFromEnv() ArxivConfig {
	cfg := ArxivConfig{
		BaseURL: os.Getenv("ARXIV_BASE_URL"),
	}
	if timeoutStr := os.Getenv("ARXIV_HTTP_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.HTTPTimeout = timeout
		}
	}
	return cfg
}

// Arxiv implements the PaperSource interface over the arXiv Atom API.
type Arxiv struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Arxiv implements the PaperSource interface
var _ repositories.PaperSource = (*Arxiv)(nil)

// NewArxiv creates an arXiv client.
func NewArxiv(config ArxivConfig, logger *zap.Logger) *Arxiv {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultArxivBaseURL
	}
	timeout := config.HTTPTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	return &Arxiv{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// Recent fetches up to max papers matching query, keeping only those
// submitted within the last daysBack days.
func (a *Arxiv) Recent(ctx context.Context, query string, max int, daysBack int) ([]entities.Paper, error) {
	params := url.Values{
		"search_query": {query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(max)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arxiv request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NewsBot/1.0)")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch arxiv feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv reply: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -daysBack)
	papers := make([]entities.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := strings.TrimSpace(entry.Title)
		summary := strings.TrimSpace(entry.Summary)
		if title == "" || summary == "" {
			continue
		}

		published, err := time.Parse(time.RFC3339, entry.Published)
		if err != nil || published.Before(cutoff) {
			continue
		}

		authors := make([]string, 0, len(entry.Authors))
		for _, author := range entry.Authors {
			authors = append(authors, author.Name)
		}

		papers = append(papers, entities.Paper{
			ID:        entry.ID,
			Title:     title,
			Summary:   summary,
			Authors:   authors,
			Published: published.Format("2006-01-02"),
		})
	}

	a.logger.Info("Fetched arxiv papers",
		zap.String("query", query),
		zap.Int("count", len(papers)))
	return papers, nil
}
