package entities

// Device represents one speaker bound to the account, as returned by the
// device list call. Read-only snapshot; never mutated by the client.
type Device struct {
	DeviceID     string `json:"deviceID"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
}
