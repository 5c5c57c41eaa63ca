package prometheus

import (
	"context"
	"errors"

	goSession "github.com/MrEthical07/goSession"
)

type nopBackend struct{}

func (nopBackend) Login(context.Context, goSession.Credentials) (goSession.LoginResult, error) {
	return goSession.LoginResult{}, errors.New("unused")
}
func (nopBackend) Refresh(context.Context, string) (string, error) { return "", errors.New("unused") }
func (nopBackend) Status(context.Context, string) (goSession.StatusResult, error) {
	return goSession.StatusResult{}, nil
}
func (nopBackend) Logout(context.Context, string) error { return nil }

type nopStore struct{ token string }

func (s *nopStore) Get(context.Context) (string, error)    { return s.token, nil }
func (s *nopStore) Set(_ context.Context, t string) error { s.token = t; return nil }
func (s *nopStore) Clear(context.Context) error            { s.token = ""; return nil }
