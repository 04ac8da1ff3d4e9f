// Command utrack is the telemetry capture daemon.
//
// Usage:
//
//	utrack -config utrack.yaml https://example.com   # track a URL with options from a YAML config
//	utrack -url https://example.com -endpoint https://collect.example.com/v1/events
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/utrack/idgen"
	"github.com/hazyhaar/utrack/internal/browser"
	"github.com/hazyhaar/utrack/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to utrack.yaml config file")
	singleURL := flag.String("url", "", "track a single URL")
	endpoint := flag.String("endpoint", "", "collection endpoint (used with -url)")
	appName := flag.String("app", "utrack", "app name reported with every event")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *endpoint, *appName, flag.Args()); err != nil {
		logger.Error("utrack: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, endpoint, appName string, args []string) error {
	if singleURL != "" {
		return runSingle(ctx, logger, singleURL, endpoint, appName)
	}
	if configPath != "" {
		if len(args) == 0 || args[0] == "" {
			return fmt.Errorf("config mode requires a URL argument: utrack -config <file> <url>")
		}
		return runConfig(ctx, logger, configPath, args[0])
	}
	fmt.Fprintln(os.Stderr, "usage: utrack -config <file> <url> | -url <url> -endpoint <url>")
	os.Exit(1)
	return nil
}

func runSingle(ctx context.Context, logger *slog.Logger, url, endpoint, appName string) error {
	opts := tracker.DefaultOptions()
	opts.Logger = logger
	opts.AppName = appName
	opts.Endpoint = endpoint

	t, mgr, err := startTracking(ctx, logger, url, opts)
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer t.Uninstall()

	<-ctx.Done()
	return nil
}

func runConfig(ctx context.Context, logger *slog.Logger, path, url string) error {
	opts, err := tracker.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.Logger = logger

	t, mgr, err := startTracking(ctx, logger, url, opts)
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer t.Uninstall()

	<-ctx.Done()
	return nil
}

func startTracking(ctx context.Context, logger *slog.Logger, url string, opts tracker.Options) (*tracker.Tracker, *browser.Manager, error) {
	mgr := browser.NewManager(opts.Browser.ToBrowserConfig(logger))
	if _, err := mgr.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	tab, err := browser.OpenTab(ctx, mgr, url, idgen.Default(), browser.LevelHeadless)
	if err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("open tab: %w", err)
	}

	t := tracker.New(tab, opts, tracker.Hooks{})
	if err := t.Install(ctx); err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("install tracker: %w", err)
	}

	return t, mgr, nil
}
