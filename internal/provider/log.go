package provider

import (
	"context"

	"github.com/jwalitptl/attend-api/pkg/logger"
)

// LogSender is the dry-run delivery backend used when no real provider is
// configured. Every message is logged and reported as delivered.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Send(_ context.Context, chatID, body string) error {
	s.logger.Info("dry-run message", "chat_id", chatID, "body", body)
	return nil
}
