package zkteco

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jwalitptl/attend-api/internal/model"
	"github.com/jwalitptl/attend-api/internal/poller"
	"github.com/jwalitptl/attend-api/pkg/logger"
)

type Config struct {
	Port    int
	Timeout time.Duration
}

// Client reads attendance logs from ZKTeco devices through their HTTP bridge
// agent. One client serves all devices; the device address comes from the
// registry record on every probe.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Port <= 0 {
		cfg.Port = 4370
	}
	return &Client{
		cfg: cfg,
		// Per-probe deadlines come from the poller's context; no client-level
		// timeout on top.
		http:   &http.Client{},
		logger: log,
	}
}

type attLogResponse struct {
	UserCount int         `json:"user_count"`
	Records   []attRecord `json:"records"`
}

type attRecord struct {
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Probe fetches buffered attendance records since the device's last sync.
// Records come back in device order.
func (c *Client) Probe(ctx context.Context, dev model.Device) (*poller.ProbeResult, error) {
	url := fmt.Sprintf("http://%s:%d/api/attlog", dev.IP, c.cfg.Port)
	if dev.LastSync != nil {
		url += "?since=" + dev.LastSync.UTC().Format(time.RFC3339)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device %s returned %d", dev.ID, resp.StatusCode)
	}

	var body attLogResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("device %s sent malformed response: %w", dev.ID, err)
	}

	result := &poller.ProbeResult{UserCount: body.UserCount}
	for _, rec := range body.Records {
		kind := model.RawCheckIn
		if rec.Type == "check-out" {
			kind = model.RawCheckOut
		}
		result.Entries = append(result.Entries, model.RawEvent{
			DeviceID:  dev.ID,
			SubjectID: rec.UserID,
			Kind:      kind,
			Timestamp: rec.Timestamp,
		})
	}
	return result, nil
}
