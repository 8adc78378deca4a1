package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
	"github.com/jwalitptl/attend-api/pkg/logger"
)

type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Client sends messages to WhatsApp group chats through a gateway API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

type sendRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// Send posts one message to the gateway. Network failures, timeouts, 429 and
// 5xx responses are transient; any other rejection is permanent.
func (c *Client) Send(ctx context.Context, chatID, body string) error {
	payload, err := json.Marshal(sendRequest{ChatID: chatID, Message: body})
	if err != nil {
		return apperrors.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return apperrors.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(msg))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return apperrors.Transient(err)
	}
	return apperrors.Permanent(err)
}
