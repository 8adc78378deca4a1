package model

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType mirrors the feed entry types the dashboard renders.
type ActivityType string

const (
	ActivityCheckIn     ActivityType = "check-in"
	ActivityCheckOut    ActivityType = "check-out"
	ActivityLateArrival ActivityType = "late-arrival"
	ActivityDeviceAlert ActivityType = "device-alert"
	ActivityDeviceState ActivityType = "device-state"
	ActivityMessageSent ActivityType = "message-sent"
	ActivityMessageFail ActivityType = "message-failed"
)

// Activity is one read-only feed entry consumed by the UI and logging
// collaborators. The feed applies no back-pressure on the core.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Subject   string       `json:"subject,omitempty"`
	Device    string       `json:"device,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Details   string       `json:"details,omitempty"`
	Status    string       `json:"status"`
}

// NewActivity stamps a feed entry with id and time.
func NewActivity(t ActivityType, status string) Activity {
	return Activity{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
		Status:    status,
	}
}
