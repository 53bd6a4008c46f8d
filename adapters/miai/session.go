package miai

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// Account login is a three-step handshake against the Xiaomi account service:
// fetch the signing material, authenticate with the hashed password, then
// trade the resulting nonce signature for a service token.

// jsonPrefix guards every JSON body the account service returns.
const jsonPrefix = "&&&START&&&"

type loginMeta struct {
	Sign     string `json:"_sign"`
	QS       string `json:"qs"`
	Callback string `json:"callback"`
}

type authResult struct {
	Code      int         `json:"code"`
	Desc      string      `json:"desc"`
	SSecurity string      `json:"ssecurity"`
	PassToken string      `json:"passToken"`
	Nonce     json.Number `json:"nonce"`
	UserID    json.Number `json:"userId"`
	Location  string      `json:"location"`
}

// Login performs the account authentication handshake and establishes the
// client's active session.
func (c *Client) Login(ctx context.Context) (*entities.Session, error) {
	if c.cfg.Account == "" || c.cfg.Password == "" {
		return nil, fmt.Errorf("miai: account and password are required for login")
	}

	// Client-side binding identifiers; the account service associates the
	// session with these and the device service requires them back on every
	// call, so they are part of the persisted bundle.
	deviceID := newBindingID()
	serialNumber := newBindingID()

	c.logger.Info("Logging in to account service",
		zap.String("accountBaseURL", c.cfg.AccountBaseURL))

	meta, err := c.fetchLoginMeta(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	auth, err := c.authenticate(ctx, deviceID, meta)
	if err != nil {
		return nil, err
	}

	serviceToken, err := c.fetchServiceToken(ctx, auth)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &entities.Session{
		UserID:       auth.UserID.String(),
		ServiceToken: serviceToken,
		DeviceID:     deviceID,
		SerialNumber: serialNumber,
		CreatedAt:    now,
		ExpiresAt:    now.Add(entities.SessionTTL),
	}

	c.session = session
	c.logger.Info("Login succeeded", zap.String("userId", session.UserID))
	return session, nil
}

// RestoreSession rebuilds the session from a persisted token bundle. Partial
// bundles are rejected before any network call is attempted.
func (c *Client) RestoreSession(bundle *entities.TokenBundle) (*entities.Session, error) {
	session, err := entities.NewSessionFromBundle(bundle)
	if err != nil {
		return nil, err
	}

	c.session = session
	c.devices = bundle.Devices
	c.logger.Info("Session restored from token bundle",
		zap.String("userId", session.UserID),
		zap.Int("knownDevices", len(bundle.Devices)))
	return session, nil
}

// CurrentSession returns the held session.
func (c *Client) CurrentSession() (*entities.Session, error) {
	if c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// fetchLoginMeta retrieves the signing material the auth step must echo back.
func (c *Client) fetchLoginMeta(ctx context.Context, deviceID string) (*loginMeta, error) {
	endpoint := c.cfg.AccountBaseURL + "/pass/serviceLogin?sid=" + serviceID + "&_json=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &NetworkError{Op: "build serviceLogin request", Err: err}
	}
	c.addLoginHeaders(req, deviceID)

	var meta loginMeta
	if err := c.doAccountJSON(req, "serviceLogin", &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// authenticate submits the hashed password together with the signing
// material. A non-zero reply code means bad credentials.
func (c *Client) authenticate(ctx context.Context, deviceID string, meta *loginMeta) (*authResult, error) {
	form := url.Values{
		"user":     {c.cfg.Account},
		"hash":     {hashPassword(c.cfg.Password)},
		"sid":      {serviceID},
		"_json":    {"true"},
		"_sign":    {meta.Sign},
		"qs":       {meta.QS},
		"callback": {meta.Callback},
	}

	endpoint := c.cfg.AccountBaseURL + "/pass/serviceLoginAuth2"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &NetworkError{Op: "build serviceLoginAuth2 request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.addLoginHeaders(req, deviceID)

	var auth authResult
	if err := c.doAccountJSON(req, "serviceLoginAuth2", &auth); err != nil {
		return nil, err
	}

	if auth.Code != 0 {
		return nil, &AuthError{Code: auth.Code, Message: auth.Desc}
	}
	if auth.Location == "" || auth.SSecurity == "" {
		return nil, &DecodeError{Op: "serviceLoginAuth2",
			Err: fmt.Errorf("reply missing location or ssecurity")}
	}
	return &auth, nil
}

// fetchServiceToken signs the nonce and follows the sts location to collect
// the serviceToken cookie.
func (c *Client) fetchServiceToken(ctx context.Context, auth *authResult) (string, error) {
	sign := clientSign(auth.Nonce.String(), auth.SSecurity)
	location := auth.Location + "&clientSign=" + url.QueryEscape(sign)

	// Redirects are walked manually so the Set-Cookie of each hop is visible.
	client := &http.Client{
		Timeout: c.cfg.HTTPTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for hop := 0; hop < 5; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return "", &NetworkError{Op: "build sts request", Err: err}
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", &NetworkError{Op: "sts", Err: err}
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		for _, cookie := range resp.Cookies() {
			if cookie.Name == "serviceToken" && cookie.Value != "" {
				return cookie.Value, nil
			}
		}

		next := resp.Header.Get("Location")
		if resp.StatusCode < 300 || resp.StatusCode >= 400 || next == "" {
			break
		}
		location = next
	}

	return "", &AuthError{Message: "no serviceToken cookie in sts reply"}
}

// doAccountJSON executes an account-service request and decodes its
// prefix-guarded JSON body into out.
func (c *Client) doAccountJSON(req *http.Request, op string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read " + op + " reply", Err: err}
	}

	trimmed := strings.TrimPrefix(string(body), jsonPrefix)
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) addLoginHeaders(req *http.Request, deviceID string) {
	req.Header.Set("User-Agent", loginUserAgent)
	req.AddCookie(&http.Cookie{Name: "sdkVersion", Value: "3.4.1"})
	req.AddCookie(&http.Cookie{Name: "deviceId", Value: deviceID})
}

// hashPassword produces the uppercase hex MD5 the auth endpoint expects.
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// clientSign is base64(sha1("nonce=<nonce>&<ssecurity>")).
func clientSign(nonce, ssecurity string) string {
	h := sha1.New()
	h.Write([]byte("nonce=" + nonce + "&" + ssecurity))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// newBindingID mints a random client binding identifier.
func newBindingID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
}
