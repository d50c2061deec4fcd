package account

import (
	"context"
	"time"

	"github.com/campabbey/camp-api/models"
	"go.uber.org/zap"
)

// ResetNotifier delivers password reset tokens to account owners
type ResetNotifier interface {
	NotifyReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error
}

// LogNotifier writes reset notifications to the log. The token itself is
// only included when revealToken is set, which is meant for development.
type LogNotifier struct {
	logger      *zap.Logger
	revealToken bool
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger, revealToken bool) *LogNotifier {
	return &LogNotifier{logger: logger, revealToken: revealToken}
}

// NotifyReset implements ResetNotifier
func (n *LogNotifier) NotifyReset(_ context.Context, user *models.User, token string, expiresAt time.Time) error {
	fields := []zap.Field{
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.Time("expires_at", expiresAt),
	}
	if n.revealToken {
		fields = append(fields, zap.String("reset_token", token))
	}
	n.logger.Info("password reset issued", fields...)
	return nil
}
