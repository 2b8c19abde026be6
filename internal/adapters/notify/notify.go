// Package notify delivers committed-transition notifications to their recipients.
package notify

import (
	"context"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
)

// Log writes every notification to the logger. It is the default notifier
// when no broker is configured.
type Log struct {
	logger logger.Logger
}

// NewLog returns a Log notifier.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Nop()
	}
	return &Log{logger: l}
}

func (n *Log) Notify(ctx context.Context, note model.Notification) error {
	n.logger.Info(ctx, "notification",
		logger.String("id", note.ID),
		logger.String("kind", string(note.Kind)),
		logger.String("session_id", note.SessionID),
		logger.String("actor_id", note.ActorID),
		logger.Int("recipients", len(note.Recipients)))
	return nil
}

// Close is a no-op.
func (n *Log) Close() error { return nil }
