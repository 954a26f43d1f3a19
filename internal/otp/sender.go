package otp

import (
	"context"

	"github.com/abundantshare/share-backend/pkg/logger"
)

// Sender delivers a generated code to the phone.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender writes codes to the log instead of sending them. The code itself
// is only logged when Reveal is set.
type LogSender struct {
	Logger *logger.Logger
	Reveal bool
}

func (s LogSender) Send(ctx context.Context, phone, code string) error {
	if s.Logger == nil {
		return nil
	}
	fields := map[string]any{"phone": phone}
	if s.Reveal {
		fields["code"] = code
	}
	s.Logger.Info(s.Logger.WithFields(ctx, fields), "otp.code_issued")
	return nil
}
