package miai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// Selector names a target device. ByID wins over ByNameSubstring; with
// neither set the first listed device is used.
type Selector struct {
	ByID            string
	ByNameSubstring string
}

type deviceListReply struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    []entities.Device `json:"data"`
}

// ListDevices fetches the devices bound to the session's account. The result
// is cached on the client; a re-list refreshes the cache and re-points the
// active device at its refreshed metadata.
func (c *Client) ListDevices(ctx context.Context) ([]entities.Device, error) {
	if c.session == nil {
		return nil, ErrNotConnected
	}

	endpoint := c.apiURL("/admin/v2/device_list", url.Values{
		"master":    {"0"},
		"requestId": {NewRequestID()},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &NetworkError{Op: "build device list request", Err: err}
	}
	c.addAuthCookies(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "device list", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read device list reply", Err: err}
	}

	var reply deviceListReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &DecodeError{Op: "device list", Err: err}
	}

	switch {
	case reply.Code == ubusCodeUnauthorized:
		return nil, &AuthError{Code: reply.Code, Message: reply.Message}
	case reply.Code != 0:
		return nil, &RemoteError{Code: reply.Code, Message: reply.Message}
	}

	c.devices = reply.Data
	if c.active != nil {
		for i := range c.devices {
			if c.devices[i].DeviceID == c.active.DeviceID {
				c.active = &c.devices[i]
				break
			}
		}
	}

	c.logger.Info("Device list refreshed", zap.Int("count", len(reply.Data)))
	return reply.Data, nil
}

// SelectDevice applies the deterministic selection policy: exact id match,
// else first device whose name contains the case-insensitive substring, else
// first device in the list. Only an empty list fails.
func SelectDevice(devices []entities.Device, sel Selector) (entities.Device, error) {
	if len(devices) == 0 {
		return entities.Device{}, ErrNoDeviceAvailable
	}

	if sel.ByID != "" {
		for _, d := range devices {
			if d.DeviceID == sel.ByID {
				return d, nil
			}
		}
	}

	if sel.ByNameSubstring != "" {
		needle := strings.ToLower(sel.ByNameSubstring)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				return d, nil
			}
		}
	}

	return devices[0], nil
}

// UseDevice resolves the selector against the device list (fetching it first
// when the cache is empty) and pins the result as the active device.
func (c *Client) UseDevice(ctx context.Context, sel Selector) (entities.Device, error) {
	if c.session == nil {
		return entities.Device{}, ErrNotConnected
	}

	if len(c.devices) == 0 {
		if _, err := c.ListDevices(ctx); err != nil {
			return entities.Device{}, err
		}
	}

	chosen, err := SelectDevice(c.devices, sel)
	if err != nil {
		return entities.Device{}, err
	}

	for i := range c.devices {
		if c.devices[i].DeviceID == chosen.DeviceID {
			c.active = &c.devices[i]
			break
		}
	}

	c.logger.Info("Active device selected",
		zap.String("name", chosen.Name),
		zap.String("deviceID", chosen.DeviceID))
	return chosen, nil
}

// ActiveDevice returns the pinned device, if any.
func (c *Client) ActiveDevice() (*entities.Device, error) {
	if c.active == nil {
		return nil, ErrNoDeviceAvailable
	}
	return c.active, nil
}

// KnownDevices returns the cached device list without a network call.
func (c *Client) KnownDevices() []entities.Device {
	return c.devices
}
