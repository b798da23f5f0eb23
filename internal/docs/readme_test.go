package docs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/pkg/cmd"
)

func commands() []cmd.Command {
	return []cmd.Command{
		&command.DiscordAdapter{Cmd: &music.MusicAdminCommand{}},
		&command.DiscordAdapter{Cmd: &music.MusicCommand{}},
		&command.DiscordAdapter{Cmd: &core.HelpCommand{}},
	}
}

func TestSectionsOrderAndSubcommands(t *testing.T) {
	out := Sections(commands(), config.CategoryWeights)

	info := strings.Index(out, "### 🕯️ Information")
	musicCat := strings.Index(out, "### 🎵 Music")
	settings := strings.Index(out, "### ⚙️ Settings")
	require.True(t, info >= 0 && info < musicCat && musicCat < settings, out)

	require.Contains(t, out, "- **/music** — Play and control music")
	require.Contains(t, out, "  - `play <query>` Queue a song or playlist")
	require.Contains(t, out, "  - `autoplay-setup <voice> <text> <playlist>`")
}

func TestUpdateReadme(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "README.md.tmpl")
	out := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(tmpl, []byte("# Jukebox\n\n{{.CommandSections}}"), 0o644))

	require.NoError(t, UpdateReadme(commands(), config.CategoryWeights, tmpl, out))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "# Jukebox\n\n### "))
}
