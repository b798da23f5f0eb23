package music

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/track"
)

const (
	queuePerPage   = 10
	historyPerPage = 5
)

type listing struct {
	kind    string
	title   string
	perPage int
	lines   func(player.Status) []string
}

var listings = map[string]listing{
	"queue":   {kind: "queue", title: "Upcoming Songs", perPage: queuePerPage, lines: queueLines},
	"history": {kind: "history", title: "Music History", perPage: historyPerPage, lines: historyLines},
}

func queueLines(st player.Status) []string {
	out := make([]string, 0, len(st.Pending))
	for _, t := range st.Pending {
		line := fmt.Sprintf("`%s` - %s", t.Title, t.Author)
		if t.Requester != "" {
			line += fmt.Sprintf(" - requested by <@%s>", t.Requester)
		}
		out = append(out, line)
	}
	return out
}

// historyLines lists the newest play first.
func historyLines(st player.Status) []string {
	hist := slices.Clone(st.History)
	slices.Reverse(hist)
	out := make([]string, 0, len(hist))
	for _, t := range hist {
		line := linkTitle(t) + " - " + t.Author
		if st.Mode == player.ModeManual && t.Requester != "" {
			line += fmt.Sprintf(" | Requested by <@%s>", t.Requester)
		}
		out = append(out, line)
	}
	return out
}

func linkTitle(t track.Track) string {
	if t.URI == "" {
		return t.Title
	}
	return fmt.Sprintf("[%s](%s)", t.Title, t.URI)
}

// paginate returns the lines of page (clamped) and the page count.
func paginate(lines []string, page, perPage int) ([]string, int, int) {
	pages := max(1, (len(lines)+perPage-1)/perPage)
	page = max(0, min(page, pages-1))
	start := page * perPage
	end := min(start+perPage, len(lines))
	return lines[start:end], page, pages
}

func (l listing) render(st player.Status, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	lines, page, pages := paginate(l.lines(st), page, l.perPage)
	embed := &discordgo.MessageEmbed{
		Title:       l.title,
		Description: strings.Join(lines, "\n"),
		Color:       bot.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", page+1, pages)},
	}
	if pages == 1 {
		return embed, nil
	}
	return embed, []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "◀", Style: discordgo.SecondaryButton, CustomID: pageID(l.kind, page-1), Disabled: page == 0},
		discordgo.Button{Label: "▶", Style: discordgo.SecondaryButton, CustomID: pageID(l.kind, page+1), Disabled: page == pages-1},
	}}}
}

func pageID(kind string, page int) string {
	return fmt.Sprintf("music:%s:%d", kind, page)
}

func parsePageID(id string) (kind string, page int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != "music" {
		return "", 0, false
	}
	page, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], page, true
}

func (c *MusicCommand) runListing(ctx context.Context, r *request, kind string) error {
	s, err := c.session(r)
	if err != nil {
		return r.fail(err)
	}
	st, err := s.Snapshot(ctx)
	if err != nil {
		return r.fail(err)
	}
	l := listings[kind]
	if len(l.lines(st)) == 0 {
		if kind == "queue" {
			return r.replyText("No more songs in the queue!")
		}
		return r.replyText("No history!")
	}

	embed, components := l.render(st, 0)
	_, err = r.s.FollowupMessageCreate(r.e.Interaction, true, &discordgo.WebhookParams{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	return err
}

func (c *MusicCommand) runQueue(ctx context.Context, r *request) error {
	return c.runListing(ctx, r, "queue")
}

func (c *MusicCommand) runHistory(ctx context.Context, r *request) error {
	return c.runListing(ctx, r, "history")
}

// Component turns the pages of a queue or history listing.
func (c *MusicCommand) Component(ctx *command.ComponentInteractionContext) error {
	kind, page, ok := parsePageID(ctx.Event.MessageComponentData().CustomID)
	l, known := listings[kind]
	if !ok || !known {
		return nil
	}

	s, found := c.Engine.Registry().Get(ctx.Event.GuildID)
	if !found {
		return bot.RespondEmbedEphemeral(ctx.Session, ctx.Event, &discordgo.MessageEmbed{Description: userMessage(player.ErrNotConnected)})
	}
	cctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	st, err := s.Snapshot(cctx)
	if err != nil {
		return err
	}

	embed, components := l.render(st, page)
	return ctx.Session.InteractionRespond(ctx.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func (c *MusicCommand) runNow(ctx context.Context, r *request) error {
	s, err := c.session(r)
	if err != nil {
		return r.fail(err)
	}
	st, err := s.Snapshot(ctx)
	if err != nil {
		return r.fail(err)
	}
	if st.Current == nil {
		return r.fail(player.ErrNothingPlaying)
	}
	return r.reply(nowEmbed(st))
}

func nowEmbed(st player.Status) *discordgo.MessageEmbed {
	t := st.Current
	status := player.StatusPlaying
	if st.State == player.StatePaused {
		status = player.StatusPaused
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Duration", Value: t.Length(), Inline: true},
		{Name: "Volume", Value: fmt.Sprintf("%d%%", st.Volume), Inline: true},
		{Name: "Equalizer", Value: st.Equalizer.String(), Inline: true},
		{Name: "Queue", Value: strconv.Itoa(len(st.Pending)), Inline: true},
		{Name: "Repeat", Value: onOff(st.Repeat), Inline: true},
	}
	if t.Requester != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Requested by", Value: "<@" + t.Requester + ">", Inline: true})
	}
	if st.DJ != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "DJ", Value: "<@" + st.DJ + ">", Inline: true})
	}
	if st.Mode == player.ModeAutoplay {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Mode", Value: "24/7", Inline: true})
	}
	return &discordgo.MessageEmbed{
		Title:       status.StringEmoji() + " " + string(status),
		Description: linkTitle(*t) + " - " + t.Author,
		Fields:      fields,
		Color:       bot.EmbedColor,
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (c *MusicCommand) runInfo(r *request) error {
	return r.reply(statsEmbed(c.Engine.NodeStats(), len(c.Engine.Registry().Guilds())))
}

func statsEmbed(st lavalink.Stats, sessions int) *discordgo.MessageEmbed {
	var sb strings.Builder
	fmt.Fprintf(&sb, "`%d` sessions are running in this bot.\n", sessions)
	fmt.Fprintf(&sb, "`%d` players are distributed on the node.\n", st.Players)
	fmt.Fprintf(&sb, "`%d` players are playing on the node.\n\n", st.PlayingPlayers)
	fmt.Fprintf(&sb, "Node Memory: `%s/%s` | `(%s free)`\n", formatBytes(st.Memory.Used), formatBytes(st.Memory.Allocated), formatBytes(st.Memory.Free))
	fmt.Fprintf(&sb, "Node Cores: `%d` | Load: `%.1f%%`\n\n", st.CPU.Cores, st.CPU.LavalinkLoad*100)
	fmt.Fprintf(&sb, "Node Uptime: `%s`", st.UptimeDuration().Truncate(time.Second))
	return &discordgo.MessageEmbed{Title: "🎛 Audio Node", Description: sb.String(), Color: bot.EmbedColor}
}

// formatBytes renders a size with decimal units, like "12.3 MB".
func formatBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
