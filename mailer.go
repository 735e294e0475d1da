package authgate

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers one-time codes. Implementations own the transport.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, address, code string) error
	SendPasswordResetEmail(ctx context.Context, address, code string) error
}

// LogMailer writes codes to a logger instead of sending mail. Development only.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) log() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (m LogMailer) SendVerificationEmail(_ context.Context, address, code string) error {
	m.log().Info("verification email", zap.String("to", address), zap.String("code", code))
	return nil
}

func (m LogMailer) SendPasswordResetEmail(_ context.Context, address, code string) error {
	m.log().Info("password reset email", zap.String("to", address), zap.String("code", code))
	return nil
}
