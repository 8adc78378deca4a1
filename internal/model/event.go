package model

import (
	"fmt"
	"time"
)

// RawEventKind is the kind of an unclassified device observation.
type RawEventKind string

const (
	RawCheckIn     RawEventKind = "check-in"
	RawCheckOut    RawEventKind = "check-out"
	RawDeviceAlert RawEventKind = "device-alert"
)

// RawEvent is an unclassified observation emitted by the poller. Immutable
// once emitted; the classifier consumes each exactly once and tolerates
// replays of identical events.
type RawEvent struct {
	DeviceID  string            `json:"device_id"`
	SubjectID string            `json:"subject_id,omitempty"`
	Kind      RawEventKind      `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// DedupKey identifies a raw event for at-least-once replay suppression.
func (e RawEvent) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s|%d", e.DeviceID, e.SubjectID, e.Kind, e.Timestamp.UnixNano())
}

// FactKind is the classified interpretation of a raw event.
type FactKind string

const (
	FactOnTimeCheckIn FactKind = "on-time-check-in"
	FactLateCheckIn   FactKind = "late-check-in"
	FactCheckOut      FactKind = "check-out"
	FactDeviceFault   FactKind = "device-fault"
)

// NotificationKind is the routing key groups subscribe to. It is the fact
// kind enum collapsed to subscription vocabulary plus the synthetic
// daily-summary kind.
type NotificationKind string

const (
	NotifyCheckIn      NotificationKind = "check-in"
	NotifyCheckOut     NotificationKind = "check-out"
	NotifyLateArrival  NotificationKind = "late-arrival"
	NotifyDeviceFault  NotificationKind = "device-fault"
	NotifyDailySummary NotificationKind = "daily-summary"
)

// Notification maps a fact kind to the notification kind groups subscribe to.
func (k FactKind) Notification() NotificationKind {
	switch k {
	case FactOnTimeCheckIn:
		return NotifyCheckIn
	case FactLateCheckIn:
		return NotifyLateArrival
	case FactCheckOut:
		return NotifyCheckOut
	case FactDeviceFault:
		return NotifyDeviceFault
	}
	return NotificationKind(k)
}

// AttendanceFact is the immutable classified form of a RawEvent.
type AttendanceFact struct {
	ID        string         `json:"id"`
	Kind      FactKind       `json:"kind"`
	SubjectID string         `json:"subject_id,omitempty"`
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	Lateness  *time.Duration `json:"lateness,omitempty"`
	Details   string         `json:"details,omitempty"`
}

// DailySummary aggregates one day of facts for the daily-summary fan-out.
type DailySummary struct {
	Date      string `json:"date"`
	CheckIns  int    `json:"checkins"`
	Late      int    `json:"late"`
	CheckOuts int    `json:"checkouts"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
}

// FactID returns the synthetic fact id used for dispatch dedup, one per day.
func (s DailySummary) FactID() string {
	return "summary-" + s.Date
}
