package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func drivers(t *testing.T) map[string]func() Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Store{
		DriverDatastore: func() Store {
			st, err := NewDatastore(filepath.Join(dir, "music.json"), zerolog.Nop())
			require.NoError(t, err)
			return st
		},
		DriverSQLite: func() Store {
			st, err := NewSQLite(filepath.Join(dir, "music.db"))
			require.NoError(t, err)
			return st
		},
		"cached": func() Store {
			st, err := New(DriverSQLite, filepath.Join(dir, "cached.db"), zerolog.Nop())
			require.NoError(t, err)
			return st
		},
	}
}

func TestMusicChannelsAndDJs(t *testing.T) {
	ctx := context.Background()
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			st := open()
			defer st.Close()

			chans, err := st.MusicChannels(ctx, "g1")
			require.NoError(t, err)
			require.Empty(t, chans)

			require.NoError(t, st.AddMusicChannel(ctx, "g1", "c1"))
			require.NoError(t, st.AddMusicChannel(ctx, "g1", "c2"))
			require.NoError(t, st.AddMusicChannel(ctx, "g1", "c1"))

			chans, err = st.MusicChannels(ctx, "g1")
			require.NoError(t, err)
			require.Equal(t, []string{"c1", "c2"}, chans)

			require.NoError(t, st.RemoveMusicChannel(ctx, "g1", "c1"))
			require.ErrorIs(t, st.RemoveMusicChannel(ctx, "g1", "c1"), ErrNotFound)

			chans, err = st.MusicChannels(ctx, "g1")
			require.NoError(t, err)
			require.Equal(t, []string{"c2"}, chans)

			require.NoError(t, st.AddDJRole(ctx, "g1", "r1"))
			djs, err := st.DJRoles(ctx, "g1")
			require.NoError(t, err)
			require.Equal(t, []string{"r1"}, djs)

			other, err := st.DJRoles(ctx, "g2")
			require.NoError(t, err)
			require.Empty(t, other)
		})
	}
}

func TestAutoplayConfig(t *testing.T) {
	ctx := context.Background()
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			st := open()
			defer st.Close()

			_, err := st.AutoplayConfig(ctx, "g1")
			require.ErrorIs(t, err, ErrNotFound)
			_, err = st.SetAutoplayEnabled(ctx, "g1", true)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.SaveAutoplayConfig(ctx, AutoplayConfig{
				GuildID: "g1", VoiceChannelID: "v1", TextChannelID: "t1", Playlist: "https://example.com/a.m3u",
				Enabled: true,
			}))
			cfg, err := st.AutoplayConfig(ctx, "g1")
			require.NoError(t, err)
			require.False(t, cfg.Enabled, "setup stores disabled")
			require.Equal(t, "v1", cfg.VoiceChannelID)
			require.WithinDuration(t, time.Now(), cfg.UpdatedAt, time.Minute)

			cfg, err = st.SetAutoplayEnabled(ctx, "g1", true)
			require.NoError(t, err)
			require.True(t, cfg.Enabled)
			require.Equal(t, "t1", cfg.TextChannelID)

			// re-setup keeps the flag
			require.NoError(t, st.SaveAutoplayConfig(ctx, AutoplayConfig{
				GuildID: "g1", VoiceChannelID: "v2", TextChannelID: "t1", Playlist: "p2",
			}))
			cfg, err = st.AutoplayConfig(ctx, "g1")
			require.NoError(t, err)
			require.True(t, cfg.Enabled)
			require.Equal(t, "v2", cfg.VoiceChannelID)

			require.NoError(t, st.SaveAutoplayConfig(ctx, AutoplayConfig{GuildID: "g2", VoiceChannelID: "v", TextChannelID: "t", Playlist: "p"}))
			all, err := st.AutoplayConfigs(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)

			enabled, err := EnabledAutoplayConfigs(ctx, st)
			require.NoError(t, err)
			require.Len(t, enabled, 1)
			require.Equal(t, "g1", enabled[0].GuildID)
		})
	}
}

func TestCommandHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			st := open()
			defer st.Close()

			for i := range commandHistoryLimit + 5 {
				require.NoError(t, st.AppendCommandHistory(ctx, "g1", CommandHistoryRecord{
					UserID: "u", Command: "music", ChannelID: string(rune('a' + i%26)), Datetime: time.Now().UTC(),
				}))
			}
			h, err := st.CommandHistory(ctx, "g1")
			require.NoError(t, err)
			require.Len(t, h, commandHistoryLimit)
		})
	}
}

func TestDatastorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "music.json")

	st, err := NewDatastore(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, st.AddMusicChannel(ctx, "g1", "c1"))
	require.NoError(t, st.SaveAutoplayConfig(ctx, AutoplayConfig{GuildID: "g1", VoiceChannelID: "v", TextChannelID: "t", Playlist: "p"}))
	require.NoError(t, st.Close())

	st, err = NewDatastore(path, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	chans, err := st.MusicChannels(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, chans)
	cfg, err := st.AutoplayConfig(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "p", cfg.Playlist)
}

type countingStore struct {
	Store
	reads int
}

func (c *countingStore) MusicChannels(ctx context.Context, guildID string) ([]string, error) {
	c.reads++
	return c.Store.MusicChannels(ctx, guildID)
}

func TestCachedReadsThroughOnce(t *testing.T) {
	ctx := context.Background()
	inner, err := NewSQLite(filepath.Join(t.TempDir(), "music.db"))
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	st := NewCached(counting)
	defer st.Close()

	for range 3 {
		_, err := st.MusicChannels(ctx, "g1")
		require.NoError(t, err)
	}
	require.Equal(t, 1, counting.reads)

	require.NoError(t, st.AddMusicChannel(ctx, "g1", "c1"))
	chans, err := st.MusicChannels(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, chans)
	require.Equal(t, 2, counting.reads)

	// returned slices are copies
	chans[0] = "mutated"
	again, err := st.MusicChannels(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, again)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mongo", filepath.Join(t.TempDir(), "x"), zerolog.Nop())
	require.Error(t, err)
}
