package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/middleware"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "jukebox:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Info().Str("app", core.AppName).Msg("starting")

	store, err := storage.New(cfg.StorageDriver, cfg.StoragePath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := discord.New(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	registerCommands(b, cfg, log)

	err = b.Run(ctx)
	log.Info().Msg("stopped")
	return err
}

func registerCommands(b *discord.Bot, cfg *config.Config, log zerolog.Logger) {
	mws := []cmd.Middleware{
		middleware.WithGuildOnly(),
		middleware.WithMusicChannelCheck(),
		middleware.WithUserPermissionCheck(cfg),
		middleware.WithCommandLogger(log),
	}

	command.RegisterCommand(&core.HelpCommand{}, mws...)
	command.RegisterCommand(&core.MaintenanceCommand{Engine: b}, mws...)
	command.RegisterCommand(&music.MusicCommand{Voice: b, Engine: b, Config: cfg}, mws...)
	command.RegisterCommand(&music.MusicAdminCommand{Engine: b}, mws...)
}
