// Package docs renders the slash command reference into README.md.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// Sections writes one markdown section per category, ordered by weight
// then name, listing each command and its subcommands.
func Sections(commands []cmd.Command, categoryWeights map[string]int) string {
	byCat := make(map[string][]cmd.Command)
	var cats []string
	for _, c := range commands {
		cat := ""
		if meta, ok := command.Meta(c); ok {
			cat = meta.Category()
		}
		if _, ok := byCat[cat]; !ok {
			cats = append(cats, cat)
		}
		byCat[cat] = append(byCat[cat], c)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := categoryWeights[cats[i]], categoryWeights[cats[j]]
		if wi == wj {
			return cats[i] < cats[j]
		}
		return wi < wj
	})

	var buf bytes.Buffer
	for i, cat := range cats {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", cat)
		cmds := byCat[cat]
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
		for _, c := range cmds {
			fmt.Fprintf(&buf, "- **/%s** — %s\n", c.Name(), c.Description())
			writeSubcommands(&buf, c)
		}
	}
	return buf.String()
}

func writeSubcommands(w io.Writer, c cmd.Command) {
	def := command.Definition(c)
	if def == nil {
		return
	}
	for _, o := range def.Options {
		if o.Type != discordgo.ApplicationCommandOptionSubCommand {
			continue
		}
		usage := o.Name
		for _, arg := range o.Options {
			if arg.Required {
				usage += " <" + arg.Name + ">"
			} else {
				usage += " [" + arg.Name + "]"
			}
		}
		fmt.Fprintf(w, "  - `%s` %s\n", usage, o.Description)
	}
}

// UpdateReadme renders tmplPath into outPath with the command sections
// available as {{.CommandSections}}.
func UpdateReadme(commands []cmd.Command, categoryWeights map[string]int, tmplPath, outPath string) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return fmt.Errorf("parse readme template: %w", err)
	}

	var out bytes.Buffer
	data := struct{ CommandSections string }{CommandSections: Sections(commands, categoryWeights)}
	if err := tmpl.Execute(&out, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}
