package model

// MessageTemplate is the format string for one notification kind. Templates
// use named placeholders from a closed vocabulary: {name}, {time},
// {location}, {device}, {expected_time}, {reason} and the daily-summary
// counters {checkins}, {late}, {present}, {absent}.
type MessageTemplate struct {
	Kind NotificationKind `json:"kind"`
	Body string           `json:"body"`
}

// DefaultTemplates returns the seeded per-kind message templates.
func DefaultTemplates() []MessageTemplate {
	return []MessageTemplate{
		{Kind: NotifyCheckIn, Body: "✅ {name} has checked in at {time} - {location}"},
		{Kind: NotifyCheckOut, Body: "🚪 {name} has checked out at {time} - {location}"},
		{Kind: NotifyLateArrival, Body: "⚠️ Late arrival: {name} checked in at {time} (Expected: {expected_time})"},
		{Kind: NotifyDeviceFault, Body: "🔌 Device alert: {device} at {location} - {reason}"},
		{Kind: NotifyDailySummary, Body: "📊 Daily Summary:\n• Total Check-ins: {checkins}\n• Late Arrivals: {late}\n• Present: {present}\n• Absent: {absent}"},
	}
}
