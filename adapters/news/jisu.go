package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
	"github.com/mihomelab/xiaoai-broadcast/internal/content"
)

const (
	defaultJisuBaseURL = "https://jisunews.market.alicloudapi.com"
	jisuNewsPath       = "/news/get"

	// newsContentLimit bounds how much of each article body is kept; the
	// downstream prompt only needs the gist of it.
	newsContentLimit = 200
)

// JisuConfig holds configuration for the jisu news feed adapter.
// Required fields:
// - AppCode: the marketplace app code sent as the Authorization credential
// Optional fields with defaults:
// - BaseURL: API base URL (default: "https://jisunews.market.alicloudapi.com")
// - HTTPTimeout: per-request timeout (default: 15s)
type JisuConfig struct {
	AppCode     string
	BaseURL     string
	HTTPTimeout time.Duration
}

// ValidateJisuConfig validates the JisuConfig.
func ValidateJisuConfig(config JisuConfig) error {
	if config.AppCode == "" {
		return fmt.Errorf("jisu news app code is required")
	}
	return nil
}

// NewJisuConfigFromEnv creates a JisuConfig from environment variables.
func NewJisuConfigFromEnv() JisuConfig {
	cfg := JisuConfig{
		AppCode: os.Getenv("JISU_APP_CODE"),
		BaseURL: os.Getenv("JISU_BASE_URL"),
	}
	if timeoutStr := os.Getenv("JISU_HTTP_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.HTTPTimeout = timeout
		}
	}
	return cfg
}

// JisuNews implements the NewsSource interface against the jisu feed.
type JisuNews struct {
	appCode    string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure JisuNews implements the NewsSource interface
var _ repositories.NewsSource = (*JisuNews)(nil)

// NewJisuNews creates a jisu news client.
func NewJisuNews(config JisuConfig, logger *zap.Logger) (*JisuNews, error) {
	if err := ValidateJisuConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultJisuBaseURL
	}
	timeout := config.HTTPTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &JisuNews{
		appCode:    config.AppCode,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type jisuReply struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Result struct {
		List []jisuItem `json:"list"`
	} `json:"result"`
}

type jisuItem struct {
	Title    string `json:"title"`
	Time     string `json:"time"`
	Src      string `json:"src"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

// Headlines fetches up to limit items from the named channel, already
// filtered and truncated for broadcast use.
func (j *JisuNews) Headlines(ctx context.Context, channel string, limit int) ([]entities.NewsItem, error) {
	query := url.Values{
		"channel": {channel},
		"num":     {strconv.Itoa(limit)},
		"start":   {"0"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		j.baseURL+jisuNewsPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news request: %w", err)
	}
	req.Header.Set("Authorization", "APPCODE "+j.appCode)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read news reply: %w", err)
	}

	var reply jisuReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode news reply: %w", err)
	}
	if reply.Status != 0 {
		return nil, fmt.Errorf("news feed rejected request (status %d): %s", reply.Status, reply.Msg)
	}

	items := make([]entities.NewsItem, 0, len(reply.Result.List))
	for _, it := range reply.Result.List {
		items = append(items, entities.NewsItem{
			Title:    content.FilterSensitive(it.Title),
			Time:     it.Time,
			Source:   it.Src,
			Category: it.Category,
			Content:  content.Truncate(content.FilterSensitive(it.Content), newsContentLimit),
		})
	}

	j.logger.Info("Fetched news headlines",
		zap.String("channel", channel),
		zap.Int("count", len(items)))
	return items, nil
}
