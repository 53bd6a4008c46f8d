package miai

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// ubus envelope codec. Pure transforms only; the network round trip lives in
// client.go. The wire shape must match the device-control service exactly:
// a deviation comes back as an authentication or malformed-request rejection,
// not as anything resembling a decode problem.

// UbusReply is the decoded outer reply envelope. Data is method-specific and
// left raw for the caller to interpret.
type UbusReply struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ubus reply code for an expired or invalid service token.
const ubusCodeUnauthorized = 401

// EncodeUbus builds the form body for one remote-procedure call. Every field
// is required; nothing is defaulted silently.
func EncodeUbus(deviceID, path, method string, message interface{}) (url.Values, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("miai: encode ubus: deviceID is required")
	}
	if path == "" {
		return nil, fmt.Errorf("miai: encode ubus: path is required")
	}
	if method == "" {
		return nil, fmt.Errorf("miai: encode ubus: method is required")
	}
	if message == nil {
		return nil, fmt.Errorf("miai: encode ubus: message is required")
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("miai: encode ubus message: %w", err)
	}

	return url.Values{
		"deviceId":  {deviceID},
		"message":   {string(payload)},
		"method":    {method},
		"path":      {path},
		"requestId": {NewRequestID()},
	}, nil
}

// NewRequestID mints the per-call request identifier the service expects.
func NewRequestID() string {
	return "app_ios_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// DecodeUbusReply parses the outer reply envelope.
func DecodeUbusReply(body []byte) (*UbusReply, error) {
	var reply UbusReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &DecodeError{Op: "ubus", Err: err}
	}
	return &reply, nil
}

// playStatusPlaying is the playback-state code meaning "currently playing".
const playStatusPlaying = 2

// playStatusData is the data payload of player_get_play_status. The service
// nests the actual status as a JSON-encoded string.
type playStatusData struct {
	Info string `json:"info"`
}

type playStatusInfo struct {
	Status *int            `json:"status"`
	Detail *playSongDetail `json:"play_song_detail"`
}

type playSongDetail struct {
	Duration *float64 `json:"duration"`
	Position *float64 `json:"position"`
}

// DecodePlayStatus interprets the data payload of a status poll. The schema
// is a best-effort reverse-engineered contract, so the decode is lenient:
// missing fields mean "unknown", never a hard failure. Only a malformed outer
// payload is a DecodeError.
func DecodePlayStatus(data json.RawMessage) (entities.PlaybackStatus, error) {
	var status entities.PlaybackStatus
	if len(data) == 0 {
		return status, nil
	}

	var outer playStatusData
	if err := json.Unmarshal(data, &outer); err != nil {
		return status, &DecodeError{Op: "play status", Err: err}
	}
	if outer.Info == "" {
		return status, nil
	}

	var info playStatusInfo
	if err := json.Unmarshal([]byte(outer.Info), &info); err != nil {
		return status, &DecodeError{Op: "play status info", Err: err}
	}

	status.Playing = info.Status != nil && *info.Status == playStatusPlaying
	if info.Detail != nil {
		status.Duration = info.Detail.Duration
		status.Position = info.Detail.Position
	}
	return status, nil
}
