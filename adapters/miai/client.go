package miai

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
)

const (
	defaultAPIBaseURL     = "https://api2.mina.mi.com"
	defaultAccountBaseURL = "https://account.xiaomi.com"
	defaultHTTPTimeout    = 30 * time.Second

	// Service identifier of the speaker cloud inside the Xiaomi account system.
	serviceID = "micoapi"

	loginUserAgent = "APP/com.xiaomi.mico APPV/2.4.21 iosPassportSDK/3.4.4 iOS/14.4"
)

// Config holds configuration for the speaker cloud client.
// Required for password login:
// - Account: Xiaomi account (phone number or email)
// - Password: account password
// Optional fields with defaults:
// - APIBaseURL: device-control service base URL (default: "https://api2.mina.mi.com")
// - AccountBaseURL: account service base URL (default: "https://account.xiaomi.com")
// - HTTPTimeout: per-request timeout (default: 30s)
type Config struct {
	Account        string
	Password       string
	APIBaseURL     string
	AccountBaseURL string
	HTTPTimeout    time.Duration
}

// NewConfigFromEnv creates a Config from environment variables.
func NewConfigFromEnv() Config {
	cfg := Config{
		Account:        os.Getenv("XIAOMI_ACCOUNT"),
		Password:       os.Getenv("XIAOMI_PASSWORD"),
		APIBaseURL:     os.Getenv("MIAI_API_BASE_URL"),
		AccountBaseURL: os.Getenv("MIAI_ACCOUNT_BASE_URL"),
	}
	if timeoutStr := os.Getenv("MIAI_HTTP_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil && timeout > 0 {
			cfg.HTTPTimeout = timeout
		}
	}
	return cfg
}

// Client talks to the speaker cloud. It owns exactly one Session at a time
// and pins one active device; all typed commands are scoped to that pair.
// A single orchestration run drives the client sequentially, so no internal
// locking is done; concurrent runs must each hold their own client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	session *entities.Session
	devices []entities.Device
	active  *entities.Device
}

// Ensure Client implements the SpeakerPlayer interface
var _ repositories.SpeakerPlayer = (*Client)(nil)

// NewClient creates a speaker cloud client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", cfg.APIBaseURL))
	}
	if cfg.AccountBaseURL == "" {
		cfg.AccountBaseURL = defaultAccountBaseURL
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// Speak asks the active device to read text aloud. The reply acknowledges
// receipt only; the device plays asynchronously afterwards.
func (c *Client) Speak(ctx context.Context, text string) error {
	c.logger.Info("Sending text to speech command",
		zap.Int("textLength", len([]rune(text))))

	_, err := c.invoke(ctx, "mibrain", "text_to_speech", map[string]interface{}{
		"text": text,
	})
	return err
}

// PlayURL asks the active device to stream a media URL.
func (c *Client) PlayURL(ctx context.Context, mediaURL string) error {
	c.logger.Info("Sending play url command", zap.String("url", mediaURL))

	_, err := c.invoke(ctx, "mediaplayer", "player_play_url", map[string]interface{}{
		"url":   mediaURL,
		"type":  1,
		"media": "app_ios",
	})
	return err
}

// SetVolume sets the device volume. Out-of-range input is clamped to
// [0, 100], not rejected, matching the boundary policy of the volume control.
func (c *Client) SetVolume(ctx context.Context, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	c.logger.Info("Sending set volume command", zap.Int("volume", level))

	_, err := c.invoke(ctx, "mediaplayer", "player_set_volume", map[string]interface{}{
		"volume": level,
		"media":  "app_ios",
	})
	return err
}

// GetStatus performs a single status poll. Callers treat the result as a
// noisy signal and retry on error rather than aborting.
func (c *Client) GetStatus(ctx context.Context) (entities.PlaybackStatus, error) {
	reply, err := c.invoke(ctx, "mediaplayer", "player_get_play_status", map[string]interface{}{
		"media": "app_ios",
	})
	if err != nil {
		return entities.PlaybackStatus{}, err
	}
	return DecodePlayStatus(reply.Data)
}

// invoke performs one remote-procedure call scoped to (session, device).
func (c *Client) invoke(ctx context.Context, path, method string, message interface{}) (*UbusReply, error) {
	if c.session == nil {
		return nil, ErrNotConnected
	}
	if c.active == nil {
		return nil, ErrNoDeviceAvailable
	}

	form, err := EncodeUbus(c.active.DeviceID, path, method, message)
	if err != nil {
		return nil, err
	}

	endpoint := c.cfg.APIBaseURL + "/remote/ubus"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &NetworkError{Op: "build ubus request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.addAuthCookies(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: path + "/" + method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read ubus reply", Err: err}
	}

	reply, err := DecodeUbusReply(body)
	if err != nil {
		return nil, err
	}

	switch {
	case reply.Code == ubusCodeUnauthorized:
		return nil, &AuthError{Code: reply.Code, Message: reply.Message}
	case reply.Code != 0:
		c.logger.Warn("Remote rejected operation",
			zap.String("path", path),
			zap.String("method", method),
			zap.Int("code", reply.Code),
			zap.String("message", reply.Message))
		return nil, &RemoteError{Code: reply.Code, Message: reply.Message}
	}

	return reply, nil
}

// addAuthCookies attaches the session binding the device service expects.
func (c *Client) addAuthCookies(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: "userId", Value: c.session.UserID})
	req.AddCookie(&http.Cookie{Name: "serviceToken", Value: c.session.ServiceToken})
	req.AddCookie(&http.Cookie{Name: "sn", Value: c.session.SerialNumber})
	req.AddCookie(&http.Cookie{Name: "deviceId", Value: c.session.DeviceID})
}

// apiURL builds a device-service URL with query parameters.
func (c *Client) apiURL(path string, query url.Values) string {
	u := c.cfg.APIBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
