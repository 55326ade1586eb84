package services

import (
	"context"
	"log/slog"
	"time"
)

// AuditEntry records a privileged action against a survey.
type AuditEntry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}

// AuditLog writes audit entries to a structured logger.
type AuditLog struct {
	logger *slog.Logger
}

func NewAuditLog(logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{logger: logger.With("component", "audit")}
}

func (a *AuditLog) Record(ctx context.Context, e AuditEntry) {
	if a == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", e.Action),
		slog.String("actor", e.Actor),
		slog.String("target", e.Target),
		slog.String("note", e.Note),
		slog.Time("at", e.Time),
	)
}
