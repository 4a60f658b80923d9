package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/pkg/logger"
)

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport constructs the development transport.
func NewLogTransport(log *zap.Logger) *LogTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogTransport{logger: log.Named("mail")}
}

// Send logs the message. Bodies are only logged at debug level since they carry tokens.
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	fields := []zap.Field{zap.String("subject", msg.Subject), zap.Int("recipients", len(msg.To))}
	for _, to := range msg.To {
		fields = append(fields, logger.Email("to", to))
	}
	t.logger.Info("mail delivered to log", fields...)
	t.logger.Debug("mail body", zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	return nil
}
