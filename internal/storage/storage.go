// Package storage persists per-guild music settings: whitelisted text
// channels, DJ roles, the 24/7 autoplay configuration and a short command log.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const commandHistoryLimit = 20

var ErrNotFound = errors.New("not found")

type AutoplayConfig struct {
	GuildID        string    `json:"guild_id"`
	VoiceChannelID string    `json:"voice_channel_id"`
	TextChannelID  string    `json:"text_channel_id"`
	Playlist       string    `json:"playlist"`
	Enabled        bool      `json:"enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

type Store interface {
	MusicChannels(ctx context.Context, guildID string) ([]string, error)
	AddMusicChannel(ctx context.Context, guildID, channelID string) error
	RemoveMusicChannel(ctx context.Context, guildID, channelID string) error

	DJRoles(ctx context.Context, guildID string) ([]string, error)
	AddDJRole(ctx context.Context, guildID, roleID string) error
	RemoveDJRole(ctx context.Context, guildID, roleID string) error

	// AutoplayConfig returns ErrNotFound when the guild never ran setup.
	AutoplayConfig(ctx context.Context, guildID string) (AutoplayConfig, error)
	// SaveAutoplayConfig upserts cfg and keeps the stored enabled flag.
	SaveAutoplayConfig(ctx context.Context, cfg AutoplayConfig) error
	// SetAutoplayEnabled returns the updated config or ErrNotFound.
	SetAutoplayEnabled(ctx context.Context, guildID string, enabled bool) (AutoplayConfig, error)
	AutoplayConfigs(ctx context.Context) ([]AutoplayConfig, error)

	AppendCommandHistory(ctx context.Context, guildID string, rec CommandHistoryRecord) error
	CommandHistory(ctx context.Context, guildID string) ([]CommandHistoryRecord, error)

	Close() error
}

const (
	DriverDatastore = "datastore"
	DriverSQLite    = "sqlite"
)

// New opens the store selected by driver and wraps it in a read-through cache.
func New(driver, path string, log zerolog.Logger) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverDatastore:
		st, err = NewDatastore(path, log)
	case DriverSQLite:
		st, err = NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", driver).Str("path", path).Msg("storage opened")
	return NewCached(st), nil
}

// EnabledAutoplayConfigs filters the stored configs to enabled ones.
func EnabledAutoplayConfigs(ctx context.Context, st Store) ([]AutoplayConfig, error) {
	all, err := st.AutoplayConfigs(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func addUnique(list []string, v string) ([]string, bool) {
	for _, x := range list {
		if x == v {
			return list, false
		}
	}
	return append(list, v), true
}

func remove(list []string, v string) ([]string, bool) {
	out := make([]string, 0, len(list))
	found := false
	for _, x := range list {
		if x == v {
			found = true
			continue
		}
		out = append(out, x)
	}
	return out, found
}

func trimHistory(h []CommandHistoryRecord) []CommandHistoryRecord {
	if len(h) > commandHistoryLimit {
		return h[len(h)-commandHistoryLimit:]
	}
	return h
}
