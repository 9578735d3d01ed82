package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/senpy/sen-dashboard/config"
	redisadapter "github.com/senpy/sen-dashboard/internal/adapters/redis"
	"github.com/senpy/sen-dashboard/internal/bootstrap"
)

// sessionAdmin is the part of the Redis session store the CLI drives.
type sessionAdmin interface {
	List(ctx context.Context, limit int) ([]redisadapter.SessionSummary, error)
	Clear(ctx context.Context, sessionID string) error
}

var errNoRedisBackend = errors.New("sessions are kept in process memory; set SESSION_BACKEND=redis to manage them")

func openSessionStore(cmdCtx *commandContext) (sessionAdmin, func() error, error) {
	if cmdCtx.Config.Session.Backend != config.SessionBackendRedis {
		return nil, nil, errNoRedisBackend
	}
	client, err := bootstrap.ConnectRedis(cmdCtx.Ctx, cmdCtx.Config.Redis, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	store := redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
		Client:  client,
		Prefix:  cmdCtx.Config.Session.KeyPrefix,
		IdleTTL: cmdCtx.Config.Session.IdleTTL,
		Logger:  cmdCtx.Logger,
	})
	return store, client.Close, nil
}

func withSessions(cmdCtx *commandContext, fn func(ctx context.Context, store sessionAdmin) error) error {
	store, closeFn, err := cmdCtx.Sessions(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeFn == nil {
			return
		}
		if cerr := closeFn(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()
	return fn(ctx, store)
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 100, "maximum sessions to list (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withSessions(cmdCtx, func(ctx context.Context, store sessionAdmin) error {
		sessions, err := store.List(ctx, *limit)
		if err != nil {
			return err
		}
		return printSessions(cmdCtx.Stdout, sessions)
	})
}

func printSessions(w io.Writer, sessions []redisadapter.SessionSummary) error {
	if len(sessions) == 0 {
		return writeln(w, "No sessions stored.")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "SESSION\tUSER\tROLE\tTTL\n"); err != nil {
		return err
	}
	for _, s := range sessions {
		user, role := "(incomplete)", "-"
		if s.Valid && s.User != nil {
			user = s.User.Email
			role = "usuario"
			if s.User.IsAdmin() {
				role = "administrador"
			}
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\n", s.ID, user, role, renderTTL(s.TTL)); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%d session(s)\n", len(sessions))
}

func renderTTL(d time.Duration) string {
	switch {
	case d == -1*time.Second || d == -1:
		return "no expiry"
	case d == -2*time.Second || d == -2:
		return "key missing"
	default:
		return d.Round(time.Second).String()
	}
}

func runClearSession(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: sen-admin clear-session <session-id>")
	}
	id := args[0]
	return withSessions(cmdCtx, func(ctx context.Context, store sessionAdmin) error {
		if err := store.Clear(ctx, id); err != nil {
			return fmt.Errorf("clear session %s: %w", id, err)
		}
		cmdCtx.Logger.Info("session cleared", "session", id)
		return writef(cmdCtx.Stdout, "Session %s cleared.\n", id)
	})
}
