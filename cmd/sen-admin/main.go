package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/senpy/sen-dashboard/config"
	"github.com/senpy/sen-dashboard/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	// standalone commands run without loading the application config.
	standalone bool
	run        commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdin  io.Reader
	Stdout io.Writer
	// Sessions opens the session store; replaced in tests.
	Sessions func(*commandContext) (sessionAdmin, func() error, error)
}

func main() {
	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, logger, os.Args[1:])
	stop()
	os.Exit(code) //nolint:forbidigo // CLI must propagate its exit status to the shell
}

func run(ctx context.Context, logger *slog.Logger, args []string) int {
	if len(args) < 1 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		return 2
	}

	cmdName := args[0]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		return 2
	}

	cmdCtx := &commandContext{
		Ctx:      ctx,
		Logger:   logger,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Sessions: openSessionStore,
	}
	if !cmd.standalone {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			logger.ErrorContext(ctx, "load config", "error", err)
			return 1
		}
		cmdCtx.Config = cfg
	}

	if err := cmd.run(cmdCtx, args[1:]); err != nil {
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", err)
		return 1
	}
	return 0
}

func commands() map[string]command {
	return map[string]command{
		"hash-password": {
			name:        "hash-password",
			description: "Print a bcrypt hash for a DEV_AUTH_USERS entry",
			standalone:  true,
			run:         runHashPassword,
		},
		"list-sessions": {
			name:        "list-sessions",
			description: "List sessions stored in Redis with their user and TTL",
			run:         runListSessions,
		},
		"clear-session": {
			name:        "clear-session",
			description: "Clear one session; open tabs are sent back to the login page",
			run:         runClearSession,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: sen-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
