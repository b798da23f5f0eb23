package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/jukebox/datastore"

	"github.com/rs/zerolog"
)

// Record is the per-guild document kept in the JSON datastore.
type Record struct {
	MusicChannels   []string               `json:"music_channels"`
	DJRoles         []string               `json:"dj_roles"`
	Autoplay        *AutoplayConfig        `json:"autoplay,omitempty"`
	CommandsHistory []CommandHistoryRecord `json:"cmd_history"`
}

type Datastore struct {
	ds *datastore.Store
	// read-modify-write of a guild record
	mu sync.Mutex
}

func NewDatastore(filePath string, log zerolog.Logger) (*Datastore, error) {
	ds, err := datastore.Open(filePath, datastore.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	return &Datastore{ds: ds}, nil
}

func (s *Datastore) Close() error {
	return s.ds.Close()
}

func (s *Datastore) getOrCreateGuildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, fmt.Errorf("load guild record: %w", err)
	}
	if record.MusicChannels == nil {
		record.MusicChannels = []string{}
	}
	if record.DJRoles == nil {
		record.DJRoles = []string{}
	}
	record.CommandsHistory = trimHistory(record.CommandsHistory)
	return &record, nil
}

// update applies fn to the guild record and stores it when fn reports a change.
func (s *Datastore) update(guildID string, fn func(*Record) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	changed, err := fn(record)
	if err != nil || !changed {
		return err
	}
	return s.ds.Put(guildID, record)
}

func (s *Datastore) view(guildID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateGuildRecord(guildID)
}

func (s *Datastore) MusicChannels(_ context.Context, guildID string) ([]string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.MusicChannels, nil
}

func (s *Datastore) AddMusicChannel(_ context.Context, guildID, channelID string) error {
	return s.update(guildID, func(r *Record) (bool, error) {
		var added bool
		r.MusicChannels, added = addUnique(r.MusicChannels, channelID)
		return added, nil
	})
}

func (s *Datastore) RemoveMusicChannel(_ context.Context, guildID, channelID string) error {
	return s.update(guildID, func(r *Record) (bool, error) {
		var found bool
		r.MusicChannels, found = remove(r.MusicChannels, channelID)
		if !found {
			return false, ErrNotFound
		}
		return true, nil
	})
}

func (s *Datastore) DJRoles(_ context.Context, guildID string) ([]string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.DJRoles, nil
}

func (s *Datastore) AddDJRole(_ context.Context, guildID, roleID string) error {
	return s.update(guildID, func(r *Record) (bool, error) {
		var added bool
		r.DJRoles, added = addUnique(r.DJRoles, roleID)
		return added, nil
	})
}

func (s *Datastore) RemoveDJRole(_ context.Context, guildID, roleID string) error {
	return s.update(guildID, func(r *Record) (bool, error) {
		var found bool
		r.DJRoles, found = remove(r.DJRoles, roleID)
		if !found {
			return false, ErrNotFound
		}
		return true, nil
	})
}

func (s *Datastore) AutoplayConfig(_ context.Context, guildID string) (AutoplayConfig, error) {
	r, err := s.view(guildID)
	if err != nil {
		return AutoplayConfig{}, err
	}
	if r.Autoplay == nil {
		return AutoplayConfig{}, ErrNotFound
	}
	return *r.Autoplay, nil
}

func (s *Datastore) SaveAutoplayConfig(_ context.Context, cfg AutoplayConfig) error {
	return s.update(cfg.GuildID, func(r *Record) (bool, error) {
		if r.Autoplay != nil {
			cfg.Enabled = r.Autoplay.Enabled
		}
		cfg.UpdatedAt = time.Now().UTC()
		r.Autoplay = &cfg
		return true, nil
	})
}

func (s *Datastore) SetAutoplayEnabled(_ context.Context, guildID string, enabled bool) (AutoplayConfig, error) {
	var out AutoplayConfig
	err := s.update(guildID, func(r *Record) (bool, error) {
		if r.Autoplay == nil {
			return false, ErrNotFound
		}
		r.Autoplay.Enabled = enabled
		r.Autoplay.UpdatedAt = time.Now().UTC()
		out = *r.Autoplay
		return true, nil
	})
	return out, err
}

func (s *Datastore) AutoplayConfigs(_ context.Context) ([]AutoplayConfig, error) {
	var out []AutoplayConfig
	for _, guildID := range s.ds.Keys() {
		r, err := s.view(guildID)
		if err != nil {
			return nil, err
		}
		if r.Autoplay != nil {
			out = append(out, *r.Autoplay)
		}
	}
	return out, nil
}

func (s *Datastore) AppendCommandHistory(_ context.Context, guildID string, rec CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) (bool, error) {
		r.CommandsHistory = trimHistory(append(r.CommandsHistory, rec))
		return true, nil
	})
}

func (s *Datastore) CommandHistory(_ context.Context, guildID string) ([]CommandHistoryRecord, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsHistory, nil
}
