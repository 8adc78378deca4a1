package model

import (
	"time"
)

// ConnectionState is the poller-driven lifecycle state of a device.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDegraded     ConnectionState = "degraded"
)

// Device is a registered fingerprint capture device. Connection state is
// mutated only by the poller; everything else only by administrative calls.
type Device struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	IP        string          `json:"ip"`
	Model     string          `json:"model"`
	Location  string          `json:"location"`
	State     ConnectionState `json:"status"`
	LastSync  *time.Time      `json:"last_sync,omitempty"`
	UserCount int             `json:"users"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Fingerprint identifies a device by its administrative attributes. A
// deregistered id may only be reused by a device with the same fingerprint.
func (d *Device) Fingerprint() string {
	return d.Name + "|" + d.IP + "|" + d.Model + "|" + d.Location
}
