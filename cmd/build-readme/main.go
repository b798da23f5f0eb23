// Command build-readme regenerates README.md from README.md.tmpl and the
// registered slash commands.
package main

import (
	"fmt"
	"os"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/docs"
)

func main() {
	command.RegisterCommand(&core.HelpCommand{})
	command.RegisterCommand(&core.MaintenanceCommand{})
	command.RegisterCommand(&music.MusicCommand{})
	command.RegisterCommand(&music.MusicAdminCommand{})

	if err := docs.UpdateReadme(command.AllCommands(), config.CategoryWeights, "README.md.tmpl", "README.md"); err != nil {
		fmt.Fprintln(os.Stderr, "build-readme:", err)
		os.Exit(1)
	}
	fmt.Println("README.md updated with current commands")
}
