package goSession

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/monitor"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/sirupsen/logrus"
)

// Builder assembles a [Session]. A Builder is single-use.
type Builder struct {
	config Config

	backend   Backend
	store     TokenStore
	auditSink AuditSink
	logger    logrus.FieldLogger
	roles     []permission.RoleDef

	now       func() time.Time
	newTicker monitor.TickerFactory

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the destination of security events. Without one, events
// are dispatched to a no-op sink so that drop accounting still works.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger overrides the logger built from Config.Log.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithRoles replaces the role table. It takes precedence over Config.Roles.
func (b *Builder) WithRoles(defs []permission.RoleDef) *Builder {
	b.roles = defs
	return b
}

// WithClock overrides the time source used for expiry checks and event
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithTickerFactory overrides how the monitor creates its ticker.
func (b *Builder) WithTickerFactory(factory monitor.TickerFactory) *Builder {
	b.newTicker = factory
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a Session in [StateUnknown].
// Call [Session.Bootstrap] before relying on the state.
func (b *Builder) Build() (*Session, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.backend == nil {
		return nil, ErrBackendRequired
	}
	if b.store == nil {
		return nil, ErrTokenStoreRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- ROLES --------
	defs := b.roles
	if len(defs) == 0 {
		defs = cfg.Roles
	}
	if len(defs) == 0 {
		defs = permission.DefaultRoles()
	}
	roles, err := permission.NewRoleManagerFromDefs(defs)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = NewLogger(cfg.Log)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NoOpSink{}
	}

	s := &Session{
		cfg:     cfg,
		backend: b.backend,
		store:   b.store,
		roles:   roles,
		metrics: NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink, logger),
		logger:   logger.WithField("component", "gosession"),
		now:      now,
		state:    StateUnknown,
		bootDone: make(chan struct{}),
	}

	// -------- REFRESH COORDINATOR --------
	coord, err := refresh.New(refresh.Config{
		MaxAttempts: cfg.Session.MaxRetryAttempts,
		Refresh:     b.backend.Refresh,
		Store:       b.store,
		OnExhausted: s.onRefreshExhausted,
		Logger:      s.logger,
	})
	if err != nil {
		s.audit.Close()
		return nil, err
	}
	s.coord = coord

	// -------- MONITOR --------
	mon, err := monitor.New(cfg.Session.MonitorInterval, s.tick, b.newTicker)
	if err != nil {
		s.audit.Close()
		return nil, err
	}
	s.monitor = mon

	s.bg, s.cancel = context.WithCancel(context.Background())

	if watcher, ok := b.store.(TokenWatcher); ok {
		if err := watcher.Watch(s.bg, s.onStoreChange); err != nil {
			s.logger.WithError(err).Warn("token store watch unavailable")
		}
	}

	b.built = true
	return s, nil
}
