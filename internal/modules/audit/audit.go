package audit

import (
	"context"
	"time"

	"github.com/joelikes8/Random-bot/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// SetNotifier registers a hook called for every WARN and CRIT entry.
func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, requesterID, event, details string) {
	entry := storage.AuditLog{
		RequesterID: requesterID,
		Level:       level,
		Event:       event,
		Details:     details,
		CreatedAt:   time.Now(),
	}

	fields := []zap.Field{
		zap.String("audit_level", level),
		zap.String("requester_id", requesterID),
		zap.String("event", event),
		zap.String("details", details),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Error("audit persist failed", append(fields, zap.Error(err))...)
		}
	}
	if l.notify != nil && level != LevelInfo {
		l.notify(ctx, entry)
	}

	switch level {
	case LevelWarn:
		l.logger.Warn("audit", fields...)
	case LevelCrit:
		l.logger.Error("audit", fields...)
	default:
		l.logger.Info("audit", fields...)
	}
}
