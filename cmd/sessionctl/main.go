// Command sessionctl manages a persisted client session against an HTTP
// authentication backend.
//
// Usage:
//
//	sessionctl [global flags] <command> [command flags]
//
// Commands:
//
//	login   -email <addr> [-password <pw>]   authenticate and persist the token
//	status                                   restore the session and print its state
//	whoami                                   print the authenticated user as JSON
//	can     <permission>                     exit 0 when the user holds permission
//	get     </path>                          authenticated GET against the backend
//	logout                                   end the session and clear the token
//	watch   [-metrics-addr :9100]            keep the session fresh until it ends
//
// The token lives in a file under the user config directory, one file per
// -profile. Session tuning comes from -config (YAML) and GOSESSION_* variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

type globalFlags struct {
	backend    string
	configPath string
	profile    string
	storePath  string
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var g globalFlags
	fs := flag.NewFlagSet("sessionctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.backend, "backend", envOr("SESSIONCTL_BACKEND", "http://localhost:8080"), "authentication backend base URL")
	fs.StringVar(&g.configPath, "config", os.Getenv("SESSIONCTL_CONFIG"), "YAML config file")
	fs.StringVar(&g.profile, "profile", "default", "session profile name")
	fs.StringVar(&g.storePath, "store", "", "token file path (defaults to the profile file)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sessionctl [flags] login|status|whoami|can|get|logout|watch [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var handler func(context.Context, *app, []string) error
	switch cmd {
	case "login":
		handler = cmdLogin
	case "status":
		handler = cmdStatus
	case "whoami":
		handler = cmdWhoami
	case "can":
		handler = cmdCan
	case "get":
		handler = cmdGet
	case "logout":
		handler = cmdLogout
	case "watch":
		handler = cmdWatch
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}

	a, err := newApp(g, stdin, stdout, stderr, cmd == "watch")
	if err != nil {
		fmt.Fprintf(stderr, "sessionctl: %v\n", err)
		return exitFail
	}
	defer a.close()

	if err := handler(ctx, a, rest); err != nil {
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		fmt.Fprintf(stderr, "sessionctl %s: %v\n", cmd, err)
		return exitFail
	}
	return exitOK
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
