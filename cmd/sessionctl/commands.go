package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
)

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	email := fs.String("email", os.Getenv("SESSIONCTL_EMAIL"), "account email")
	pw := fs.String("password", os.Getenv("SESSIONCTL_PASSWORD"), "account password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" {
		fmt.Fprintln(a.stderr, "login: -email is required")
		return errUsage
	}
	if *pw == "" {
		line, err := readPassword(a)
		if err != nil {
			return err
		}
		*pw = line
	}

	a.session.Bootstrap(ctx)
	user, err := a.session.Login(ctx, goSession.Credentials{Email: *email, Password: *pw})
	if err != nil {
		var le *goSession.LoginError
		if errors.As(err, &le) {
			return fmt.Errorf("login rejected: %s", le.Reason)
		}
		return err
	}
	fmt.Fprintf(a.stdout, "logged in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func readPassword(a *app) (string, error) {
	fmt.Fprint(a.stderr, "password: ")
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdStatus(ctx context.Context, a *app, _ []string) error {
	state := a.session.Bootstrap(ctx)
	fmt.Fprintln(a.stdout, state)
	if state != goSession.StateAuthenticated {
		return nil
	}
	if token, err := a.session.AccessToken(ctx); err == nil {
		if exp, ok := jwt.ExpiresAt(token); ok {
			fmt.Fprintf(a.stdout, "expires in %s\n", time.Until(exp).Round(time.Second))
		}
	}
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	if a.session.Bootstrap(ctx) != goSession.StateAuthenticated {
		return goSession.ErrNotAuthenticated
	}
	out := struct {
		*goSession.UserRecord
		Permissions []string `json:"permissions"`
	}{a.session.User(), a.session.Permissions()}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func cmdCan(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "usage: sessionctl can <permission>")
		return errUsage
	}
	if a.session.Bootstrap(ctx) != goSession.StateAuthenticated {
		return goSession.ErrNotAuthenticated
	}
	if !a.session.HasPermission(args[0]) {
		return fmt.Errorf("permission %q denied", args[0])
	}
	fmt.Fprintln(a.stdout, "allowed")
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	a.session.Bootstrap(ctx)
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "logged out")
	return nil
}

// cmdWatch keeps the session alive until it ends or the process is
// interrupted. Ending the session from another sessionctl process stops the
// watch through the file store watcher.
func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if a.session.Bootstrap(ctx) != goSession.StateAuthenticated {
		return goSession.ErrNotAuthenticated
	}

	if *metricsAddr != "" {
		ln, err := net.Listen("tcp", *metricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		srv := &http.Server{Handler: promexport.NewCollector(a.session).Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() { _ = srv.Serve(ln) }()
		defer srv.Close()
		a.logger.WithField("addr", ln.Addr().String()).Info("serving metrics")
	}

	user := a.session.User()
	a.logger.WithField("user_id", user.ID).Info("watching session")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("watch interrupted; session kept")
			return nil
		case ev := <-a.events.Events():
			entry := a.logger.WithField("kind", ev.Kind)
			if ev.Reason != "" {
				entry = entry.WithField("reason", ev.Reason)
			}
			for k, v := range ev.Metadata {
				entry = entry.WithField(k, v)
			}
			entry.Info("security event")
			if ev.Kind == goSession.EventLogout || ev.Kind == goSession.EventTokenExpired {
				fmt.Fprintf(a.stdout, "session ended: %s\n", ev.Kind)
				return nil
			}
		}
	}
}

// cmdGet fetches a backend path with the session's bearer token and prints
// the response body. A 401 is retried once after a refresh.
func cmdGet(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 || !strings.HasPrefix(args[0], "/") {
		fmt.Fprintln(a.stderr, "usage: sessionctl get </path>")
		return errUsage
	}
	if a.session.Bootstrap(ctx) != goSession.StateAuthenticated {
		return goSession.ErrNotAuthenticated
	}

	client := &http.Client{
		Transport: &middleware.Transport{Source: a.session},
		Timeout:   30 * time.Second,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(a.backend, "/")+args[0], nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(a.stdout, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return errors.New(resp.Status)
	}
	return nil
}
