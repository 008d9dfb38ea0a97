package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sender define la interfaz para envio de codigos de inicio de sesion.
type Sender interface {
	SendLoginOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendLoginOTP(_ context.Context, _ string, _ string, _ time.Time) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// RetryingSender acota cada intento con un timeout y reintenta un numero fijo de veces.
type RetryingSender struct {
	next    Sender
	logger  *zap.Logger
	timeout time.Duration
	retries int
	backoff time.Duration
}

func NewRetryingSender(next Sender, logger *zap.Logger, timeout time.Duration, retries int) *RetryingSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &RetryingSender{
		next:    next,
		logger:  logger,
		timeout: timeout,
		retries: retries,
		backoff: 250 * time.Millisecond,
	}
}

func (s *RetryingSender) SendLoginOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("send login otp: %w", ctx.Err())
			case <-time.After(s.backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		lastErr = s.next.SendLoginOTP(attemptCtx, toEmail, code, expiresAt)
		cancel()
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("send login otp attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("email", toEmail),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("send login otp after %d attempts: %w", s.retries+1, lastErr)
}
