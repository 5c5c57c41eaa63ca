package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Kind names a security-relevant session transition.
type Kind string

const (
	KindLoginSuccess Kind = "LOGIN_SUCCESS"
	KindLoginFailure Kind = "LOGIN_FAILURE"
	KindLogout       Kind = "LOGOUT"
	KindTokenExpired Kind = "TOKEN_EXPIRED"
)

// Event is a write-once security record. The core never reads events back.
type Event struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LogSink writes events as structured log entries.
type LogSink struct {
	logger logrus.FieldLogger
}

func NewLogSink(logger logrus.FieldLogger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	fields := logrus.Fields{
		"audit_id": event.ID,
		"kind":     string(event.Kind),
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	s.logger.WithFields(fields).Info("security event")
}

// RedisStreamSink appends events to a Redis stream, trimmed to roughly MaxLen
// entries.
type RedisStreamSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger logrus.FieldLogger
}

func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64, logger logrus.FieldLogger) *RedisStreamSink {
	if stream == "" {
		stream = "gosession:audit"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (s *RedisStreamSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.client == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"kind":  string(event.Kind),
			"event": data,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		s.logger.WithError(err).WithField("stream", s.stream).Warn("audit stream append failed")
	}
}
