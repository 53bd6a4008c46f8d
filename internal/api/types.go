package api

import "github.com/mihomelab/xiaoai-broadcast/domain/entities"

// SpeakRequest asks the active device to read text aloud.
type SpeakRequest struct {
	Text string `json:"text" validate:"required"`
}

// PlayRequest asks the active device to stream a media URL.
type PlayRequest struct {
	URL string `json:"url" validate:"required"`
}

// VolumeRequest sets the device volume; out-of-range values are clamped.
type VolumeRequest struct {
	Level int `json:"level"`
}

// AckResponse acknowledges a command that produces no payload.
type AckResponse struct {
	Status string `json:"status"`
}

// StatusResponse wraps one status poll.
type StatusResponse struct {
	Status entities.PlaybackStatus `json:"status"`
}

// DevicesResponse lists the devices bound to the account.
type DevicesResponse struct {
	Devices []entities.Device `json:"devices"`
}

// RunResponse reports how a playback run settled.
type RunResponse struct {
	Report *entities.RunReport `json:"report"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
