package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/backend/httpapi"
	"github.com/MrEthical07/goSession/store"
)

type app struct {
	backend string
	session *goSession.Session
	store   *store.File
	events  *goSession.ChannelSink
	logger  *logrus.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newApp wires a Session from flags, config file and environment. watch
// sessions collect audit events on a channel; the others log them.
func newApp(g globalFlags, stdin io.Reader, stdout, stderr io.Writer, watch bool) (*app, error) {
	cfg := goSession.DefaultConfig()
	if g.configPath != "" {
		loaded, err := goSession.LoadConfigFile(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := goSession.NewLogger(cfg.Log)
	logger.SetOutput(stderr)
	for _, w := range cfg.Lint() {
		logger.WithField("code", w.Code).Warn(w.Message)
	}

	path := g.storePath
	if path == "" {
		p, err := store.DefaultFilePath(g.profile)
		if err != nil {
			return nil, err
		}
		path = p
	}
	tokens, err := store.NewFile(path, logger)
	if err != nil {
		return nil, err
	}

	client, err := httpapi.NewClient(g.backend, httpapi.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{backend: g.backend, store: tokens, logger: logger, stdin: stdin, stdout: stdout, stderr: stderr}

	b := goSession.New().
		WithConfig(cfg).
		WithBackend(client).
		WithTokenStore(tokens).
		WithLogger(logger)
	if watch {
		a.events = goSession.NewChannelSink(cfg.Audit.BufferSize)
		b = b.WithAuditSink(a.events)
	} else {
		b = b.WithAuditSink(goSession.NewLogSink(logger))
	}

	s, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	a.session = s
	return a, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
	}
}
