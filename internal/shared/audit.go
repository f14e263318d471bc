package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditSchema creates the audit_logs table when it is missing.
const AuditSchema = `CREATE TABLE IF NOT EXISTS audit_logs (
	id BIGSERIAL PRIMARY KEY,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	meta JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes console actions into audit_logs. A logger without a pool
// only emits the record to the structured log.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger. pool may be nil.
func NewAuditLogger(pool *pgxpool.Pool, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return nil
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	if l.logger != nil {
		l.logger.Info("audit",
			slog.String("actor", log.Actor),
			slog.String("action", log.Action),
			slog.String("entity", log.Entity),
			slog.String("entity_id", log.EntityID),
		)
	}
	if l.pool == nil {
		return nil
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`, log.Actor, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}

// RecordSessionEvents subscribes the logger to session lifecycle events.
func (l *AuditLogger) RecordSessionEvents(sessions *SessionManager) func() {
	return sessions.Subscribe(func(ctx context.Context, evt SessionEvent) {
		action := "session." + string(evt.Kind)
		if evt.Reason != "" {
			action += "." + evt.Reason
		}
		err := l.Record(context.WithoutCancel(ctx), AuditLog{
			Actor:    evt.Identity.Username,
			Action:   action,
			Entity:   "session",
			EntityID: evt.SessionID,
		})
		if err != nil && l.logger != nil {
			l.logger.Warn("audit session event", slog.Any("error", err))
		}
	})
}

// Actor returns the username recorded for the session, or "anonymous".
func Actor(sess *Session) string {
	if sess == nil {
		return "anonymous"
	}
	if id, ok := sess.Identity(); ok {
		return id.Username
	}
	return "anonymous"
}
