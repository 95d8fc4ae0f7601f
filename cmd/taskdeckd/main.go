// Command taskdeckd is the taskdeck daemon. It serves the task submission
// form and API, answers Discord interactions, posts daily reminders, and
// reconciles stale summary messages in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/taskdeck/taskdeck/config"
	"github.com/taskdeck/taskdeck/discord"
	"github.com/taskdeck/taskdeck/internal/version"
	"github.com/taskdeck/taskdeck/janitor"
	"github.com/taskdeck/taskdeck/sched"
	"github.com/taskdeck/taskdeck/server"
	"github.com/taskdeck/taskdeck/task"
)

var configPath = flag.String("config", "taskdeck.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	logger.Info("starting taskdeckd",
		"version", version.Version,
		"commit", version.Commit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close(context.Background()) //nolint:errcheck

	chat := discord.NewClient(cfg.Discord.BotToken, cfg.Discord.WebhookURL)

	cleaner := janitor.New(store, chat, logger, 64)
	cleaner.Run(ctx)

	engine := sched.NewEngine(logger)
	for _, expr := range cfg.Reminders.Schedules {
		if err := engine.Add("daily-reminder", expr, func(jobCtx context.Context) {
			if _, err := chat.SendChannelMessage(jobCtx, cfg.Discord.DailyChannelID, cfg.Reminders.Message); err != nil {
				logger.Error("send daily reminder", "error", err)
			}
		}); err != nil {
			log.Fatalf("Failed to register reminder %q: %v", expr, err)
		}
	}
	engine.Run(ctx)

	srv := server.New(cfg, store, chat, cleaner, version.Version, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server exited", "error", err)
	}

	cancel()
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("server stop error", "error", err)
	}
	engine.Wait()
	cleaner.Wait()
	fmt.Println("Shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	switch cfg.Store.Backend {
	case "mongo":
		return task.NewMongoStore(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return task.NewSQLiteStore(filepath.Join(cfg.DataDir, "taskdeck.db"))
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
