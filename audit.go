package goSession

import (
	"context"
	"io"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SecurityEvent is an immutable audit record.
type SecurityEvent = audit.Event

// EventKind names a security event.
type EventKind = audit.Kind

// AuditSink receives security events. Emit is called from the dispatcher
// goroutine, never from the session's critical path.
type AuditSink = audit.Sink

// Security event kinds.
const (
	EventLoginSuccess = audit.KindLoginSuccess
	EventLoginFailure = audit.KindLoginFailure
	EventLogout       = audit.KindLogout
	EventTokenExpired = audit.KindTokenExpired
)

// Forced-logout reasons carried on EventTokenExpired.
const (
	ReasonExpired          = "expired"
	ReasonRefreshExhausted = "refresh_exhausted"
	ReasonTokenMissing     = "token_missing"
)

type (
	NoOpSink        = audit.NoOpSink
	ChannelSink     = audit.ChannelSink
	JSONWriterSink  = audit.JSONWriterSink
	LogSink         = audit.LogSink
	RedisStreamSink = audit.RedisStreamSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return audit.NewLogSink(logger)
}

// NewRedisStreamSink appends events to stream, trimming it to roughly maxLen
// entries when maxLen > 0.
func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64, logger logrus.FieldLogger) *RedisStreamSink {
	return audit.NewRedisStreamSink(client, stream, maxLen, logger)
}

func (s *Session) emitAudit(ctx context.Context, kind EventKind, user *UserRecord, reason string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	event := SecurityEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: s.now().UTC(),
		Reason:    reason,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	s.audit.Emit(context.WithoutCancel(ctx), event)
}

// AuditDropped returns the number of events lost to a full buffer.
func (s *Session) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// AuditFailed returns the number of events whose sink panicked.
func (s *Session) AuditFailed() uint64 {
	return s.audit.Failed()
}
