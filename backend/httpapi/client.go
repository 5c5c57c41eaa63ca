package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	goSession "github.com/MrEthical07/goSession"
)

const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathStatus  = "/auth/status"
	PathLogout  = "/auth/logout"

	// DefaultTimeout bounds each backend round-trip.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

type errorBody struct {
	Error string `json:"error"`
}

type tokenBody struct {
	Token string `json:"token"`
}

// Client implements goSession.Backend against a remote service.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger logrus.FieldLogger
}

var _ goSession.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient parses baseURL and returns a Client. The default transport is
// wrapped with otelhttp so every backend call produces a client span.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("backend url missing host")
	}

	c := &Client{
		base: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultTimeout,
		},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Login(ctx context.Context, creds goSession.Credentials) (goSession.LoginResult, error) {
	var out goSession.LoginResult
	if err := c.do(ctx, http.MethodPost, PathLogin, "", creds, &out); err != nil {
		return goSession.LoginResult{}, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var out tokenBody
	if err := c.do(ctx, http.MethodPost, PathRefresh, token, nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) Status(ctx context.Context, token string) (goSession.StatusResult, error) {
	var out goSession.StatusResult
	if err := c.do(ctx, http.MethodGet, PathStatus, token, nil, &out); err != nil {
		return goSession.StatusResult{}, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, PathLogout, token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, limited)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("malformed backend response")
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(status int, r io.Reader) error {
	be := &goSession.BackendError{StatusCode: status}
	raw, _ := io.ReadAll(r)
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		be.Reason = eb.Error
	} else {
		be.Reason = strings.TrimSpace(string(raw))
	}
	if be.Reason == "" {
		be.Reason = http.StatusText(status)
	}
	return be
}
