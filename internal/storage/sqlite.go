package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS music_channels (
	guild_id    TEXT PRIMARY KEY,
	channel_ids TEXT NOT NULL DEFAULT '[]',
	djs         TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS music_loopers (
	guild_id   TEXT PRIMARY KEY,
	vc_id      TEXT NOT NULL,
	tc_id      TEXT NOT NULL,
	playlist   TEXT NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS command_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id     TEXT NOT NULL,
	channel_id   TEXT NOT NULL,
	channel_name TEXT NOT NULL,
	guild_name   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	username     TEXT NOT NULL,
	command      TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS command_history_guild ON command_history (guild_id, id);
`

// SQLite mirrors the music_channels and music_loopers tables of the
// relational layout; id lists are stored as JSON arrays.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) idList(ctx context.Context, column, guildID string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT "+column+" FROM music_channels WHERE guild_id = ?", guildID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", column, err)
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// mutateIDList runs a read-modify-write of one id list inside a transaction.
func (s *SQLite) mutateIDList(ctx context.Context, column, guildID string, fn func([]string) ([]string, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT "+column+" FROM music_channels WHERE guild_id = ?", guildID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		raw = "[]"
	case err != nil:
		return fmt.Errorf("select %s: %w", column, err)
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO music_channels (guild_id, `+column+`) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET `+column+` = excluded.`+column,
		guildID, string(encoded))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", column, err)
	}
	return tx.Commit()
}

func addTo(v string) func([]string) ([]string, error) {
	return func(list []string) ([]string, error) {
		list, _ = addUnique(list, v)
		return list, nil
	}
}

func removeFrom(v string) func([]string) ([]string, error) {
	return func(list []string) ([]string, error) {
		list, found := remove(list, v)
		if !found {
			return nil, ErrNotFound
		}
		return list, nil
	}
}

func (s *SQLite) MusicChannels(ctx context.Context, guildID string) ([]string, error) {
	return s.idList(ctx, "channel_ids", guildID)
}

func (s *SQLite) AddMusicChannel(ctx context.Context, guildID, channelID string) error {
	return s.mutateIDList(ctx, "channel_ids", guildID, addTo(channelID))
}

func (s *SQLite) RemoveMusicChannel(ctx context.Context, guildID, channelID string) error {
	return s.mutateIDList(ctx, "channel_ids", guildID, removeFrom(channelID))
}

func (s *SQLite) DJRoles(ctx context.Context, guildID string) ([]string, error) {
	return s.idList(ctx, "djs", guildID)
}

func (s *SQLite) AddDJRole(ctx context.Context, guildID, roleID string) error {
	return s.mutateIDList(ctx, "djs", guildID, addTo(roleID))
}

func (s *SQLite) RemoveDJRole(ctx context.Context, guildID, roleID string) error {
	return s.mutateIDList(ctx, "djs", guildID, removeFrom(roleID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLooper(row rowScanner) (AutoplayConfig, error) {
	var c AutoplayConfig
	err := row.Scan(&c.GuildID, &c.VoiceChannelID, &c.TextChannelID, &c.Playlist, &c.Enabled, &c.UpdatedAt)
	return c, err
}

const looperColumns = "guild_id, vc_id, tc_id, playlist, enabled, updated_at"

func (s *SQLite) AutoplayConfig(ctx context.Context, guildID string) (AutoplayConfig, error) {
	c, err := scanLooper(s.db.QueryRowContext(ctx, "SELECT "+looperColumns+" FROM music_loopers WHERE guild_id = ?", guildID))
	if errors.Is(err, sql.ErrNoRows) {
		return AutoplayConfig{}, ErrNotFound
	}
	if err != nil {
		return AutoplayConfig{}, fmt.Errorf("select music_loopers: %w", err)
	}
	return c, nil
}

func (s *SQLite) SaveAutoplayConfig(ctx context.Context, cfg AutoplayConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO music_loopers (guild_id, vc_id, tc_id, playlist, enabled, updated_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			vc_id = excluded.vc_id,
			tc_id = excluded.tc_id,
			playlist = excluded.playlist,
			updated_at = excluded.updated_at
	`, cfg.GuildID, cfg.VoiceChannelID, cfg.TextChannelID, cfg.Playlist, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert music_loopers: %w", err)
	}
	return nil
}

func (s *SQLite) SetAutoplayEnabled(ctx context.Context, guildID string, enabled bool) (AutoplayConfig, error) {
	c, err := scanLooper(s.db.QueryRowContext(ctx,
		"UPDATE music_loopers SET enabled = ?, updated_at = ? WHERE guild_id = ? RETURNING "+looperColumns,
		enabled, time.Now().UTC(), guildID))
	if errors.Is(err, sql.ErrNoRows) {
		return AutoplayConfig{}, ErrNotFound
	}
	if err != nil {
		return AutoplayConfig{}, fmt.Errorf("update music_loopers: %w", err)
	}
	return c, nil
}

func (s *SQLite) AutoplayConfigs(ctx context.Context) ([]AutoplayConfig, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+looperColumns+" FROM music_loopers ORDER BY guild_id")
	if err != nil {
		return nil, fmt.Errorf("select music_loopers: %w", err)
	}
	defer rows.Close()

	var out []AutoplayConfig
	for rows.Next() {
		c, err := scanLooper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendCommandHistory(ctx context.Context, guildID string, rec CommandHistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO command_history (guild_id, channel_id, channel_name, guild_name, user_id, username, command, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, guildID, rec.ChannelID, rec.ChannelName, rec.GuildName, rec.UserID, rec.Username, rec.Command, rec.Datetime)
	if err != nil {
		return fmt.Errorf("insert command_history: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM command_history WHERE guild_id = ? AND id NOT IN (
			SELECT id FROM command_history WHERE guild_id = ? ORDER BY id DESC LIMIT ?
		)
	`, guildID, guildID, commandHistoryLimit)
	if err != nil {
		return fmt.Errorf("trim command_history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) CommandHistory(ctx context.Context, guildID string) ([]CommandHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, channel_name, guild_name, user_id, username, command, created_at
		FROM command_history WHERE guild_id = ? ORDER BY id
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("select command_history: %w", err)
	}
	defer rows.Close()

	var out []CommandHistoryRecord
	for rows.Next() {
		var r CommandHistoryRecord
		if err := rows.Scan(&r.ChannelID, &r.ChannelName, &r.GuildName, &r.UserID, &r.Username, &r.Command, &r.Datetime); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
