package middleware

import (
	"context"
	"io"
	"net/http"

	"github.com/MrEthical07/goSession/refresh"
)

// TokenSource supplies and renews the bearer token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) refresh.Outcome
}

// Transport is an http.RoundTripper that authenticates requests with the
// session token.
type Transport struct {
	Source TokenSource
	// Base performs the request. Nil uses http.DefaultTransport.
	Base http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip fails without sending when no live token is held. A 401 triggers
// one refresh and one replay; requests whose body cannot be replayed are
// returned as-is.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	token, err := t.Source.AccessToken(ctx)
	if err != nil {
		closeBody(req)
		return nil, err
	}

	resp, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	if t.Source.Refresh(ctx) != refresh.Success {
		return resp, nil
	}
	next, err := t.Source.AccessToken(ctx)
	if err != nil || next == token {
		return resp, nil
	}

	retry := withBearer(req, next)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return t.base().RoundTrip(retry)
}

// withBearer clones req, since a RoundTripper must not modify its input.
func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
