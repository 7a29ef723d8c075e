// Package main is the entry point for the awth server.
//
// awth keeps users and their posts in memory, persists each collection to a
// single binary file under the data directory and exposes a small HTTP API.
// Configuration is read from CLI flags and config.yaml.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/maruel/awth/internal/server"
	"github.com/maruel/awth/internal/server/handlers"
	"github.com/maruel/awth/internal/storage"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "awth: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Write JSON logs to this file, rotated by size, instead of stderr")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	if err := ll.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	if *logFile != "" {
		lj := &lumberjack.Logger{Filename: *logFile, MaxSize: 50, MaxBackups: 5, Compress: true}
		defer func() { _ = lj.Close() }()
		slog.SetDefault(newFileLogger(lj, ll))
	} else {
		slog.SetDefault(newConsoleLogger(os.Stderr, ll, os.Getenv("JOURNAL_STREAM") != ""))
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg, err := storage.LoadConfig(*dataDir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := storage.NewMetrics(reg)
	if err != nil {
		return err
	}
	db, err := storage.OpenDB(ctx, *dataDir, cfg, metrics)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	buildVersion, _, _, _ := getBuildInfo()
	users := storage.NewUserService(db, cfg.BcryptCost)
	httpServer := &http.Server{
		Addr: *httpAddr,
		Handler: server.NewRouter(&server.Config{
			DB:             db,
			Users:          users,
			Posts:          storage.NewPostService(db),
			Tokens:         handlers.NewTokens(cfg.Secret(), cfg.TokenTTL),
			Gatherer:       reg,
			SaveRatePerMin: cfg.SaveRatePerMin,
			Version:        buildVersion,
		}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		db.Registry.Run(ctx, cfg.SaveInterval)
	}()

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", *httpAddr, "version", buildVersion, "users", users.Count())
		serverErr <- httpServer.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
		stop()
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	<-saverDone

	// Flush whatever the last tick did not catch. ctx is already canceled.
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Save(saveCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("final save: %w", err))
	}
	return runErr
}

// newConsoleLogger returns a colored human readable logger. Timestamps are
// dropped under systemd since journald adds its own.
func newConsoleLogger(w *os.File, level slog.Leveler, underSystemd bool) *slog.Logger {
	return slog.New(tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return dropZero(groups, a)
		},
	}))
}

// newFileLogger returns a JSON logger suitable for machine ingestion.
func newFileLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: dropZero}))
}

// dropZero elides attributes carrying a zero value and loopback client IPs.
func dropZero(_ []string, a slog.Attr) slog.Attr {
	if a.Key == "ip" {
		if v := a.Value.String(); v == "127.0.0.1" || v == "::1" {
			return slog.Attr{}
		}
	}
	skip := false
	switch t := a.Value.Any().(type) {
	case string:
		skip = t == ""
	case bool:
		skip = !t
	case uint64:
		skip = t == 0
	case int64:
		skip = t == 0
	case float64:
		skip = t == 0
	case time.Time:
		skip = t.IsZero()
	case time.Duration:
		skip = t == 0
	case nil:
		skip = true
	}
	if skip {
		return slog.Attr{}
	}
	return a
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("awth %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
