package discord

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// commandShape is the part of a definition Discord stores; ids and
// versions are left out so a hash only changes with the definition.
type commandShape struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Type        discordgo.ApplicationCommandType `json:"type"`
	Permissions *int64                           `json:"permissions,omitempty"`
	Options     []optionShape                    `json:"options,omitempty"`
}

type optionShape struct {
	Name        string                                 `json:"name"`
	Description string                                 `json:"description"`
	Type        discordgo.ApplicationCommandOptionType `json:"type"`
	Required    bool                                   `json:"required"`
	Channels    []discordgo.ChannelType                `json:"channels,omitempty"`
	MinValue    *float64                               `json:"min,omitempty"`
	MaxValue    float64                                `json:"max,omitempty"`
	Choices     []choiceShape                          `json:"choices,omitempty"`
	Options     []optionShape                          `json:"options,omitempty"`
}

type choiceShape struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// hashCommand returns a stable digest of a command definition.
func hashCommand(def *discordgo.ApplicationCommand) string {
	shape := commandShape{
		Name:        def.Name,
		Description: def.Description,
		Type:        def.Type,
		Permissions: def.DefaultMemberPermissions,
		Options:     shapeOptions(def.Options),
	}
	data, _ := json.Marshal(shape)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func shapeOptions(opts []*discordgo.ApplicationCommandOption) []optionShape {
	if len(opts) == 0 {
		return nil
	}
	out := make([]optionShape, 0, len(opts))
	for _, o := range opts {
		sh := optionShape{
			Name:        o.Name,
			Description: o.Description,
			Type:        o.Type,
			Required:    o.Required,
			Channels:    o.ChannelTypes,
			MinValue:    o.MinValue,
			MaxValue:    o.MaxValue,
			Options:     shapeOptions(o.Options),
		}
		for _, c := range o.Choices {
			sh.Choices = append(sh.Choices, choiceShape{Name: c.Name, Value: c.Value})
		}
		out = append(out, sh)
	}
	// required options must stay first, so only sort subcommands
	if out[0].Type == discordgo.ApplicationCommandOptionSubCommand || out[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup {
		slices.SortFunc(out, func(a, b optionShape) int { return strings.Compare(a.Name, b.Name) })
	}
	return out
}
