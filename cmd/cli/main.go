// Command cli inspects link classification and resolution and manages the
// stored music settings without starting the bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// settings is the subset of the bot configuration the CLI needs. Discord
// credentials are never required here.
type settings struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"datastore"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	LavalinkHost     string `env:"LAVALINK_HOST" envDefault:"localhost"`
	LavalinkPort     int    `env:"LAVALINK_PORT" envDefault:"2333"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyMarket       string `env:"SPOTIFY_MARKET" envDefault:"US"`
	SpotifyProxy        string `env:"SPOTIFY_PROXY"`

	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()
	var set settings
	if err := env.Parse(&set); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}

	reg := cmd.NewRegistry()
	registerAll(reg)

	fs := flag.NewFlagSet("jukebox-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVar(&set.StorageDriver, "driver", set.StorageDriver, "storage driver (datastore or sqlite)")
	fs.StringVar(&set.StoragePath, "path", set.StoragePath, "storage file")
	verbose := fs.BoolP("verbose", "v", false, "debug logging")
	fs.Usage = func() { usage(fs, reg, stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, closer, err := logging.New(logging.Options{Level: level})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{settings: set, log: log, out: stdout}
	defer a.close()

	if err := reg.Dispatch(ctx, fs.Args(), a); err != nil {
		if errors.Is(err, cmd.ErrNoCommand) || errors.Is(err, cmd.ErrUnknownCommand) {
			fmt.Fprintln(stderr, err)
			usage(fs, reg, stderr)
			return 2
		}
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet, reg *cmd.Registry, w io.Writer) {
	fmt.Fprintln(w, "usage: jukebox-cli [flags] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range reg.GetAll() {
		fmt.Fprintf(w, "  %-18s %s\n", c.Name(), c.Description())
	}
	fmt.Fprintln(w, "\nflags:")
	fmt.Fprint(w, fs.FlagUsages())
}

// app carries what commands share; the store opens on first use.
type app struct {
	settings settings
	log      zerolog.Logger
	out      io.Writer
	store    storage.Store
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
