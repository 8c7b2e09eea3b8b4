package notify

import (
	"context"

	"github.com/hackgods/carebook-scheduling/pkg/logging"
)

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSMSSender records text messages in the log. No SMS gateway is wired.
type LogSMSSender struct {
	logger *logging.Logger
}

func NewLogSMSSender(logger *logging.Logger) *LogSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms simulated", "to", to, "length", len(body))
	return nil
}
