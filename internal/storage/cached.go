package storage

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Cached is a read-through cache over a Store. Writes go to the backing
// store first and invalidate the affected guild.
type Cached struct {
	Store

	mu       sync.RWMutex
	channels map[string][]string
	djs      map[string][]string
	autoplay map[string]*AutoplayConfig // nil value caches ErrNotFound
}

func NewCached(st Store) *Cached {
	return &Cached{
		Store:    st,
		channels: make(map[string][]string),
		djs:      make(map[string][]string),
		autoplay: make(map[string]*AutoplayConfig),
	}
}

// Unwrap returns the backing store.
func (c *Cached) Unwrap() Store { return c.Store }

func (c *Cached) cachedList(ctx context.Context, m map[string][]string, guildID string, load func(context.Context, string) ([]string, error)) ([]string, error) {
	c.mu.RLock()
	v, ok := m[guildID]
	c.mu.RUnlock()
	if ok {
		return slices.Clone(v), nil
	}

	v, err := load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	m[guildID] = v
	c.mu.Unlock()
	return slices.Clone(v), nil
}

func (c *Cached) invalidate(guildID string) {
	c.mu.Lock()
	delete(c.channels, guildID)
	delete(c.djs, guildID)
	delete(c.autoplay, guildID)
	c.mu.Unlock()
}

func (c *Cached) MusicChannels(ctx context.Context, guildID string) ([]string, error) {
	return c.cachedList(ctx, c.channels, guildID, c.Store.MusicChannels)
}

func (c *Cached) AddMusicChannel(ctx context.Context, guildID, channelID string) error {
	defer c.invalidate(guildID)
	return c.Store.AddMusicChannel(ctx, guildID, channelID)
}

func (c *Cached) RemoveMusicChannel(ctx context.Context, guildID, channelID string) error {
	defer c.invalidate(guildID)
	return c.Store.RemoveMusicChannel(ctx, guildID, channelID)
}

func (c *Cached) DJRoles(ctx context.Context, guildID string) ([]string, error) {
	return c.cachedList(ctx, c.djs, guildID, c.Store.DJRoles)
}

func (c *Cached) AddDJRole(ctx context.Context, guildID, roleID string) error {
	defer c.invalidate(guildID)
	return c.Store.AddDJRole(ctx, guildID, roleID)
}

func (c *Cached) RemoveDJRole(ctx context.Context, guildID, roleID string) error {
	defer c.invalidate(guildID)
	return c.Store.RemoveDJRole(ctx, guildID, roleID)
}

func (c *Cached) AutoplayConfig(ctx context.Context, guildID string) (AutoplayConfig, error) {
	c.mu.RLock()
	v, ok := c.autoplay[guildID]
	c.mu.RUnlock()
	if ok {
		if v == nil {
			return AutoplayConfig{}, ErrNotFound
		}
		return *v, nil
	}

	cfg, err := c.Store.AutoplayConfig(ctx, guildID)
	switch {
	case err == nil:
		c.mu.Lock()
		c.autoplay[guildID] = &cfg
		c.mu.Unlock()
	case errors.Is(err, ErrNotFound):
		c.mu.Lock()
		c.autoplay[guildID] = nil
		c.mu.Unlock()
	}
	return cfg, err
}

func (c *Cached) SaveAutoplayConfig(ctx context.Context, cfg AutoplayConfig) error {
	defer c.invalidate(cfg.GuildID)
	return c.Store.SaveAutoplayConfig(ctx, cfg)
}

func (c *Cached) SetAutoplayEnabled(ctx context.Context, guildID string, enabled bool) (AutoplayConfig, error) {
	defer c.invalidate(guildID)
	return c.Store.SetAutoplayEnabled(ctx, guildID, enabled)
}
