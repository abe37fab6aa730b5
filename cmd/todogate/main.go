package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/todogate/todogate/internal/admin"
	"github.com/todogate/todogate/internal/api"
	"github.com/todogate/todogate/internal/config"
	"github.com/todogate/todogate/internal/diag"
	"github.com/todogate/todogate/internal/metrics"
	"github.com/todogate/todogate/internal/queue"
	"github.com/todogate/todogate/internal/server"
	"github.com/todogate/todogate/internal/todo"
)

const (
	retentionInterval = time.Hour
	shutdownTimeout   = 10 * time.Second
)

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("todogate", pflag.ExitOnError)
	cfg.AddFlags(fs)
	fs.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	lvl, _ := cfg.SlogLevel()
	level.Set(lvl)

	if err := run(cfg); err != nil {
		slog.Error("todogate", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, diagStore, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}

	metrics.Register()
	store := todo.NewMemoryStore()
	q := queue.New(cfg.Workers, queue.WithBound(cfg.QueueBound))
	defer drainAndClose(q, sinks, shutdownTimeout)
	srv := server.New(q, api.NewHandler(store, sinks), sinks, server.Options{
		ReadBufferSize: cfg.ReadBufferSize,
		ConnRateLimit:  cfg.ConnRateLimit,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })

	if cfg.AdminAddr != "" {
		var reader admin.DiagnosticsReader
		if diagStore != nil {
			reader = diagStore
		}
		adminSrv := &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      admin.NewHandler(store, q, reader).Routes(cfg.AdminAPIKeys),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			slog.Info("admin listening", "addr", cfg.AdminAddr)
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return adminSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("shutting down", "pending", q.Pending())
	return err
}

// drainAndClose waits up to timeout for queued and running jobs, which may
// still record diagnostics, and then closes the sinks.
func drainAndClose(q *queue.Queue, sinks io.Closer, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := q.Drain(ctx); err != nil {
		slog.Warn("jobs still running at shutdown, their diagnostics may be lost",
			"pending", q.Pending(), "error", err)
	}
	if err := sinks.Close(); err != nil {
		slog.Error("close diagnostics sinks", "error", err)
	}
}

// buildSinks assembles the configured diagnostics sinks. The SQLite sink is
// also returned so the admin endpoint can read it back; it is nil when disabled.
func buildSinks(ctx context.Context, cfg *config.Config) (diag.Multi, *diag.SQLiteSink, error) {
	var sinks diag.Multi
	if cfg.ErrorLogPath != "" {
		sinks = append(sinks, diag.NewFileSink(cfg.ErrorLogPath))
		slog.Info("diagnostics file enabled", "path", cfg.ErrorLogPath)
	}

	var db *diag.SQLiteSink
	if cfg.DiagDBPath != "" {
		var err error
		db, err = diag.NewSQLiteSink(cfg.DiagDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("diagnostics store: %w", err)
		}
		db.StartRetention(ctx, cfg.DiagRetention, retentionInterval)
		sinks = append(sinks, db)
		slog.Info("diagnostics store enabled", "path", cfg.DiagDBPath, "retention", cfg.DiagRetention)
	}

	if cfg.DiagWebhookURL != "" {
		wh, err := diag.NewWebhookSink(cfg.DiagWebhookURL, false)
		if err != nil {
			sinks.Close() //nolint:errcheck
			return nil, nil, err
		}
		sinks = append(sinks, wh)
		slog.Info("diagnostics webhook enabled")
	}
	return sinks, db, nil
}
