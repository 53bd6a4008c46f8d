package entities

import (
	"fmt"
	"strings"
	"time"
)

// TokenBundle is the persisted credential set written by the get-token flow
// and consumed by session restore. The JSON shape matches xiaomi_token.json.
type TokenBundle struct {
	Timestamp    time.Time `json:"timestamp"`
	ExpiresAt    time.Time `json:"expiresAt"`
	ServiceToken string    `json:"serviceToken"`
	UserID       string    `json:"userId"`
	Cookie       string    `json:"cookie,omitempty"`
	DeviceID     string    `json:"deviceId"`
	SerialNumber string    `json:"serialNumber"`
	Devices      []Device  `json:"devices,omitempty"`
}

// InvalidTokenBundleError reports which required bundle fields are missing.
// A partial bundle is rejected before any network call is attempted: the
// session-resume call needs the binding id and serial number, not just tokens.
type InvalidTokenBundleError struct {
	Missing []string
}

func (e *InvalidTokenBundleError) Error() string {
	return fmt.Sprintf("invalid token bundle: missing %s", strings.Join(e.Missing, ", "))
}

// Validate checks that every field required for session restore is present.
func (b *TokenBundle) Validate() error {
	var missing []string
	if b.UserID == "" {
		missing = append(missing, "userId")
	}
	if b.ServiceToken == "" {
		missing = append(missing, "serviceToken")
	}
	if b.DeviceID == "" {
		missing = append(missing, "deviceId")
	}
	if b.SerialNumber == "" {
		missing = append(missing, "serialNumber")
	}
	if len(missing) > 0 {
		return &InvalidTokenBundleError{Missing: missing}
	}
	return nil
}

// Session is the authenticated identity scoping every remote call. It is
// immutable once established; a refresh replaces it wholesale.
type Session struct {
	UserID       string    `json:"userId"`
	ServiceToken string    `json:"serviceToken"`
	DeviceID     string    `json:"deviceId"`
	SerialNumber string    `json:"serialNumber"`
	Cookie       string    `json:"cookie,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionTTL is how long a freshly minted service token is assumed to hold.
const SessionTTL = 24 * time.Hour

// NewSessionFromBundle builds a Session from a validated token bundle.
func NewSessionFromBundle(b *TokenBundle) (*Session, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	created := b.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	expires := b.ExpiresAt
	if expires.IsZero() {
		expires = created.Add(SessionTTL)
	}

	return &Session{
		UserID:       b.UserID,
		ServiceToken: b.ServiceToken,
		DeviceID:     b.DeviceID,
		SerialNumber: b.SerialNumber,
		Cookie:       b.Cookie,
		CreatedAt:    created,
		ExpiresAt:    expires,
	}, nil
}

// Bundle converts the session back into its persistable form.
func (s *Session) Bundle(devices []Device) *TokenBundle {
	return &TokenBundle{
		Timestamp:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
		ServiceToken: s.ServiceToken,
		UserID:       s.UserID,
		Cookie:       s.Cookie,
		DeviceID:     s.DeviceID,
		SerialNumber: s.SerialNumber,
		Devices:      devices,
	}
}

// IsExpired checks if the session has outlived its service token.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
