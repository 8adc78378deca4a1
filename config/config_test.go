package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			AutoSync:          true,
			IntervalSeconds:   30,
			ConnectionTimeout: 60,
			MaxRetries:        3,
		},
		Notifications: NotificationConfig{
			SummaryTime:  "18:00",
			GraceMinutes: 10,
		},
		Dispatch: DispatchConfig{
			Workers:             4,
			MessageDelaySeconds: 2,
			MaxRetries:          3,
			RetryFailedMessages: true,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sync interval too low", func(c *Config) { c.Sync.IntervalSeconds = 9 }},
		{"sync interval too high", func(c *Config) { c.Sync.IntervalSeconds = 301 }},
		{"connection timeout too low", func(c *Config) { c.Sync.ConnectionTimeout = 29 }},
		{"connection timeout too high", func(c *Config) { c.Sync.ConnectionTimeout = 301 }},
		{"sync retries zero", func(c *Config) { c.Sync.MaxRetries = 0 }},
		{"sync retries too high", func(c *Config) { c.Sync.MaxRetries = 11 }},
		{"message delay zero", func(c *Config) { c.Dispatch.MessageDelaySeconds = 0 }},
		{"message delay too high", func(c *Config) { c.Dispatch.MessageDelaySeconds = 61 }},
		{"dispatch retries zero", func(c *Config) { c.Dispatch.MaxRetries = 0 }},
		{"bad summary time", func(c *Config) { c.Notifications.SummaryTime = "25:99" }},
		{"negative grace", func(c *Config) { c.Notifications.GraceMinutes = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBoundaryValuesAreAccepted(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.IntervalSeconds = 10
	cfg.Sync.ConnectionTimeout = 300
	cfg.Sync.MaxRetries = 10
	cfg.Dispatch.MessageDelaySeconds = 60
	assert.NoError(t, cfg.Validate())
}

func TestRouterConfigParsesSummaryTime(t *testing.T) {
	nc := NotificationConfig{SummaryTime: "18:30"}
	rc, err := nc.ToRouterConfig()
	assert.NoError(t, err)
	assert.Equal(t, 18, rc.SummaryTime.Hour)
	assert.Equal(t, 30, rc.SummaryTime.Minute)

	_, err = (&NotificationConfig{SummaryTime: "late"}).ToRouterConfig()
	assert.Error(t, err)
}

func TestToSettingsCarriesToggles(t *testing.T) {
	cfg := validConfig()
	cfg.Notifications.LateArrival = true
	cfg.Dispatch.RetryFailedMessages = false

	s := cfg.ToSettings()
	assert.True(t, s.NotifyOnLateArrival)
	assert.False(t, s.RetryFailedMessages)
	assert.Equal(t, 30, s.SyncInterval)
	assert.Equal(t, "18:00", s.SummaryTime)
}
