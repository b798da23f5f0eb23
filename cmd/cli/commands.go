package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/spotify"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/util"
)

// cliCommand adapts a function to cmd.Command. The invocation payload is
// the shared *app.
type cliCommand struct {
	name, usage, desc string
	nargs             int
	run               func(ctx context.Context, a *app, args []string) error
}

func (c *cliCommand) Name() string        { return c.name }
func (c *cliCommand) Description() string { return c.desc }

func (c *cliCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	a, ok := inv.Data.(*app)
	if !ok {
		return fmt.Errorf("%s: not a cli invocation", c.name)
	}
	if len(inv.Args) < c.nargs {
		return fmt.Errorf("usage: %s %s", c.name, c.usage)
	}
	return c.run(ctx, a, inv.Args)
}

func registerAll(reg *cmd.Registry) {
	for _, c := range []*cliCommand{
		{name: "classify", usage: "<query>", desc: "Show how a query is classified", nargs: 1, run: runClassify},
		{name: "resolve", usage: "[--limit n] <query>", desc: "Resolve a query into tracks", nargs: 1, run: runResolve},
		{name: "autoplay-list", desc: "List stored 24/7 music setups", run: runAutoplayList},
		{name: "autoplay-set", usage: "<guild> <voice> <text> <playlist>", desc: "Store a 24/7 music setup", nargs: 4, run: runAutoplaySet},
		{name: "autoplay-enable", usage: "<guild>", desc: "Enable 24/7 music for a guild", nargs: 1, run: autoplayToggle(true)},
		{name: "autoplay-disable", usage: "<guild>", desc: "Disable 24/7 music for a guild", nargs: 1, run: autoplayToggle(false)},
		{name: "channels", usage: "[--add id] [--remove id] <guild>", desc: "Show or edit whitelisted music channels", nargs: 1, run: runChannels},
	} {
		reg.MustRegister(c)
	}
}

func (a *app) openStore() (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := storage.New(a.settings.StorageDriver, a.settings.StoragePath, a.log)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

func runClassify(_ context.Context, a *app, args []string) error {
	c := source_resolver.Classify(strings.Join(args, " "))
	fmt.Fprintf(a.out, "kind:  %s\nid:    %s\nquery: %s\n", c.Kind, c.ID, c.Query)
	return nil
}

func (a *app) resolver(ctx context.Context) (*source_resolver.SourceResolver, error) {
	node := lavalink.NewNode(lavalink.NodeConfig{
		Host:       a.settings.LavalinkHost,
		Port:       a.settings.LavalinkPort,
		Password:   a.settings.LavalinkPassword,
		Secure:     a.settings.LavalinkSecure,
		ClientName: "jukebox-cli/1.0",
	}, a.log, nil)

	var curated sources.Curated
	if a.settings.SpotifyClientID != "" && a.settings.SpotifyClientSecret != "" {
		sp, err := spotify.New(ctx, spotify.Config{
			ClientID:     a.settings.SpotifyClientID,
			ClientSecret: a.settings.SpotifyClientSecret,
			Market:       a.settings.SpotifyMarket,
			Proxy:        a.settings.SpotifyProxy,
		}, a.log)
		if err != nil {
			return nil, err
		}
		curated = sp
	}
	return source_resolver.New(node, curated, a.settings.CatalogTimeout, a.log), nil
}

func runResolve(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	limit := fs.IntP("limit", "n", 20, "tracks to print, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: resolve [--limit n] <query>")
	}

	r, err := a.resolver(ctx)
	if err != nil {
		return err
	}
	res, err := r.Resolve(ctx, strings.Join(fs.Args(), " "), "cli")
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s", res.Kind)
	if res.Name != "" {
		fmt.Fprintf(a.out, " %q", res.Name)
	}
	fmt.Fprintf(a.out, ", %d tracks\n", len(res.Tracks))

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for i, t := range res.Tracks {
		if *limit > 0 && i >= *limit {
			fmt.Fprintf(tw, "...\t%d more\n", len(res.Tracks)-i)
			break
		}
		state := "ready"
		if !t.Playable() {
			state = "lazy"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, t.Display(), t.Length(), state, t.URI)
	}
	return tw.Flush()
}

func runAutoplayList(ctx context.Context, a *app, _ []string) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	cfgs, err := st.AutoplayConfigs(ctx)
	if err != nil {
		return err
	}
	if len(cfgs) == 0 {
		fmt.Fprintln(a.out, "no autoplay setups")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GUILD\tENABLED\tVOICE\tTEXT\tUPDATED\tPLAYLIST")
	for _, c := range cfgs {
		updated := util.FormatDateTpl(c.UpdatedAt.UnixMilli(), "YYYY-MM-DD hh:mm")
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%s\n", c.GuildID, c.Enabled, c.VoiceChannelID, c.TextChannelID, updated, c.Playlist)
	}
	return tw.Flush()
}

// runAutoplaySet stores a setup without validating the playlist; the bot
// checks it when the setup is enabled.
func runAutoplaySet(ctx context.Context, a *app, args []string) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	cfg := storage.AutoplayConfig{
		GuildID:        args[0],
		VoiceChannelID: args[1],
		TextChannelID:  args[2],
		Playlist:       args[3],
	}
	if err := st.SaveAutoplayConfig(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved autoplay setup for %s\n", cfg.GuildID)
	return nil
}

func autoplayToggle(enabled bool) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		cfg, err := st.SetAutoplayEnabled(ctx, args[0], enabled)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("guild %s has no autoplay setup", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "autoplay for %s enabled=%t\n", cfg.GuildID, cfg.Enabled)
		return nil
	}
}

func runChannels(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("channels", flag.ContinueOnError)
	add := fs.StringSlice("add", nil, "channel ids to whitelist")
	remove := fs.StringSlice("remove", nil, "channel ids to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: channels [--add id] [--remove id] <guild>")
	}
	guildID := fs.Arg(0)

	st, err := a.openStore()
	if err != nil {
		return err
	}
	for _, id := range *add {
		if err := st.AddMusicChannel(ctx, guildID, id); err != nil {
			return err
		}
	}
	for _, id := range *remove {
		if err := st.RemoveMusicChannel(ctx, guildID, id); err != nil {
			return err
		}
	}

	ids, err := st.MusicChannels(ctx, guildID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "no whitelisted channels, music commands work everywhere")
		return nil
	}
	fmt.Fprintln(a.out, strings.Join(ids, "\n"))
	return nil
}
