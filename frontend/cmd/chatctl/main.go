// Command chatctl is a terminal client for the chat backend. It keeps one
// session per profile and shares its configuration with chat-bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/apiclient"
	"github.com/ginchat/ginchat/frontend/internal/bootstrap"
	"github.com/ginchat/ginchat/frontend/internal/config"
	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/core/services"
	"github.com/ginchat/ginchat/frontend/internal/telemetry"
)

const sessionExpiredNotice = "session expired, please log in again"

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":       {"login --email E [--password P]", cmdLogin},
	"register":    {"register --username U --email E [--password P]", cmdRegister},
	"logout":      {"logout", cmdLogout},
	"whoami":      {"whoami", cmdWhoami},
	"rooms":       {"rooms", cmdRooms},
	"create-room": {"create-room NAME", cmdCreateRoom},
	"join":        {"join ROOM_ID", cmdJoin},
	"messages":    {"messages ROOM_ID [--limit N]", cmdMessages},
	"send":        {"send ROOM_ID [--text T] [--file PATH | --media-url URL] [--type TYPE]", cmdSend},
	"health":      {"health", cmdHealth},
	"watch":       {"watch", cmdWatch},
	"keygen":      {"keygen", cmdKeygen},
}

// errUsage marks a bad invocation; usage has already been printed.
var errUsage = errors.New("usage")

// app is the wired client stack one invocation works with.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	sessions *services.SessionService
	client   *apiclient.Client
	hub      *telemetry.Hub
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	closers  []bootstrap.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "chatctl: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	// keygen needs no configuration; it produces some.
	if args[0] == "keygen" {
		if err := cmd.run(ctx, &app{stdout: stdout}, args[1:]); err != nil {
			fmt.Fprintln(stderr, "chatctl:", err)
			return 1
		}
		return 0
	}

	a, err := newApp(ctx, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "chatctl:", err)
		return 1
	}
	defer a.close()

	invalidated, cancel := a.hub.Subscribe(domain.TopicSession)
	defer cancel()

	err = cmd.run(ctx, a, args[1:])

	// Reported once however many calls in this invocation hit a 401.
	select {
	case <-invalidated:
		fmt.Fprintln(stderr, sessionExpiredNotice)
	default:
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintln(stderr, "chatctl:", strings.TrimPrefix(err.Error(), "usage: "))
		}
		fmt.Fprintf(stderr, "usage: chatctl %s\n", cmd.usage)
		return 2
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintln(stderr, "chatctl:", err)
		return 1
	}
}

func newApp(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := telemetry.NewLogger(cfg.LogLevel, "console", stderr).With().Str("profile", cfg.SessionProfile).Logger()

	a := &app{cfg: cfg, logger: logger, hub: telemetry.NewHub(nil), stdin: stdin, stdout: stdout, stderr: stderr}

	sessions, closer, err := bootstrap.Sessions(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sessions = sessions
	a.closers = append(a.closers, closer)

	client, err := bootstrap.Client(cfg, sessions, a.hub, nil, logger, apiclient.WithUserAgent("chatctl"))
	if err != nil {
		a.close()
		return nil, err
	}
	a.client = client
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("failed to release resource")
		}
	}
	a.hub.Close()
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: chatctl <command> [flags]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	b.WriteString("\nconfiguration is read from the environment and .env (API_BASE_URL, SESSION_BACKEND, ...)\n")
	fmt.Fprint(w, b.String())
}
