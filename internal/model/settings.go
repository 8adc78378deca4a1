package model

// Settings is the runtime-tunable configuration surface exposed over the
// API. Range tags mirror config validation; out-of-range updates are
// rejected, not clamped.
type Settings struct {
	AutoSync            bool   `json:"auto_sync"`
	SyncInterval        int    `json:"sync_interval" validate:"gte=10,lte=300"`
	ConnectionTimeout   int    `json:"connection_timeout" validate:"gte=30,lte=300"`
	MaxRetries          int    `json:"max_retries" validate:"gte=1,lte=10"`
	MessageDelay        int    `json:"message_delay" validate:"gte=1,lte=60"`
	SummaryTime         string `json:"summary_time" validate:"required"`
	RetryFailedMessages bool   `json:"retry_failed_messages"`
	NotifyOnCheckIn     bool   `json:"notify_on_check_in"`
	NotifyOnCheckOut    bool   `json:"notify_on_check_out"`
	NotifyOnLateArrival bool   `json:"notify_on_late_arrival"`
	NotifyOnDeviceError bool   `json:"notify_on_device_error"`
	DailySummary        bool   `json:"daily_summary"`
}
