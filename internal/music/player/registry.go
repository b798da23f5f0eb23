package player

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Options struct {
	Backend       Backend
	Materializer  Materializer
	Notifier      Notifier
	HistoryLimit  int
	DefaultVolume int
	Logger        zerolog.Logger
}

type AcquireOptions struct {
	Mode         Mode
	ChannelID    string
	ControllerID string
	Refill       RefillFunc // autoplay only
}

// Registry is the only place sessions are created, replaced and looked up.
// Per-guild slots serialize create and replace; lookups only read the
// slot's atomic pointer.
type Registry struct {
	opts Options
	log  zerolog.Logger

	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	mu  sync.Mutex
	cur atomic.Pointer[Session]
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:  opts,
		log:   opts.Logger.With().Str("component", "registry").Logger(),
		slots: make(map[string]*slot),
	}
}

func (r *Registry) slot(guildID string) *slot {
	r.mu.RLock()
	sl, ok := r.slots[guildID]
	r.mu.RUnlock()
	if ok {
		return sl
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sl, ok = r.slots[guildID]; !ok {
		sl = &slot{}
		r.slots[guildID] = sl
	}
	return sl
}

// Get returns the live session of the guild.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	sl, ok := r.slots[guildID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s := sl.cur.Load()
	if s == nil || !s.alive() {
		return nil, false
	}
	return s, true
}

// Acquire returns a connected session of the requested mode for the guild,
// reusing the current one when modes match and replacing it otherwise. On
// a connect failure nothing is registered. created reports a new session.
func (r *Registry) Acquire(ctx context.Context, guildID string, opts AcquireOptions) (s *Session, created bool, err error) {
	sl := r.slot(guildID)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if cur := sl.cur.Load(); cur != nil && cur.alive() {
		if cur.mode == opts.Mode {
			if err := cur.Connect(ctx, opts.ChannelID); err != nil {
				return nil, false, err
			}
			return cur, false, nil
		}
		r.log.Info().Str("guild", guildID).Str("from", cur.mode.String()).Str("to", opts.Mode.String()).Msg("replacing session")
		cur.Destroy(ctx)
	}

	s = newSession(sessionConfig{
		guildID:      guildID,
		mode:         opts.Mode,
		controllerID: opts.ControllerID,
		backend:      r.opts.Backend,
		mat:          r.opts.Materializer,
		notifier:     r.opts.Notifier,
		refill:       opts.Refill,
		historyLimit: r.opts.HistoryLimit,
		volume:       r.opts.DefaultVolume,
		log:          r.opts.Logger,
		onDestroy: func(dead *Session) {
			sl.cur.CompareAndSwap(dead, nil)
		},
	})
	if err := s.Connect(ctx, opts.ChannelID); err != nil {
		s.Destroy(context.WithoutCancel(ctx))
		return nil, false, err
	}
	sl.cur.Store(s)
	r.log.Info().Str("guild", guildID).Str("session", s.id).Str("mode", opts.Mode.String()).Msg("session created")
	return s, true, nil
}

// Dispatch routes a backend event to the guild's live session. Events for
// guilds without one are dropped.
func (r *Registry) Dispatch(ev Event) bool {
	s, ok := r.Get(ev.GuildID)
	if !ok {
		r.log.Debug().Str("guild", ev.GuildID).Msg("event for absent session dropped")
		return false
	}
	return s.deliver(ev)
}

// Evict destroys the guild's session, e.g. after the bot was removed from voice.
func (r *Registry) Evict(ctx context.Context, guildID string) bool {
	s, ok := r.Get(guildID)
	if !ok {
		return false
	}
	r.log.Info().Str("guild", guildID).Str("session", s.id).Msg("evicting session")
	s.Destroy(ctx)
	return true
}

// Guilds lists guilds with a live session.
func (r *Registry) Guilds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.slots))
	for g, sl := range r.slots {
		if s := sl.cur.Load(); s != nil && s.alive() {
			out = append(out, g)
		}
	}
	return out
}

// Shutdown destroys every live session.
func (r *Registry) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for _, g := range r.Guilds() {
		if s, ok := r.Get(g); ok {
			wg.Go(func() { s.Destroy(ctx) })
		}
	}
	wg.Wait()
	r.log.Info().Msg("all sessions destroyed")
}
