package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sglre6355/keyboardcat/internal/bot"
	_ "github.com/sglre6355/keyboardcat/internal/modules/music_player"
)

// version is set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0" ./cmd/keyboardcat
var version = "dev"

// Bounds for bringing modules up and down.
const (
	startTimeout    = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Values already in the environment win over .env
	if err := bot.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := bot.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	slog.Info("starting keyboardcat", "version", version)

	b := bot.NewBot(cfg)
	b.LoadModules()

	startCtx, cancelStart := context.WithTimeout(context.Background(), startTimeout)
	err = b.Start(startCtx)
	cancelStart()
	if err != nil {
		slog.Error("failed to start bot", "error", err)
		stopBot(b)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("received termination signal, shutting down")
	stopBot(b)

	slog.Info("completed bot shutdown")
}

func stopBot(b *bot.Bot) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.Stop(ctx); err != nil {
		slog.Error("failed to shutdown", "error", err)
	}
}
