// Package player runs one playback session per guild. Each session owns
// a goroutine that applies user operations and backend events strictly in
// arrival order, so no session field is ever touched from two goroutines.
package player

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/internal/music/vote"
)

const (
	MaxVolume     = 100
	DefaultVolume = 100

	// consecutive failed tracks before the session gives up and idles
	maxFailures = 3

	eventTimeout = 15 * time.Second
	eventBuffer  = 32
)

type op struct {
	ctx context.Context
	fn  func(ctx context.Context) error
	res chan error
}

type Session struct {
	id       string
	guildID  string
	mode     Mode
	backend  Backend
	mat      Materializer
	notifier Notifier
	refill   RefillFunc
	log      zerolog.Logger

	onDestroy func(*Session)

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan op
	events chan Event
	done   chan struct{}

	// loop-owned
	state        State
	queue        *queue.Queue
	current      *track.Track
	dj           string
	volume       int
	eq           lavalink.Preset
	channelID    string
	controllerID string
	ballots      vote.Ballots
	failures     int
	startedAt    time.Time
}

type sessionConfig struct {
	guildID      string
	mode         Mode
	controllerID string
	backend      Backend
	mat          Materializer
	notifier     Notifier
	refill       RefillFunc
	historyLimit int
	volume       int
	log          zerolog.Logger
	onDestroy    func(*Session)
}

func newSession(cfg sessionConfig) *Session {
	if cfg.mat == nil {
		cfg.mat = passthrough{}
	}
	if cfg.notifier == nil {
		cfg.notifier = nopNotifier{}
	}
	if cfg.onDestroy == nil {
		cfg.onDestroy = func(*Session) {}
	}
	if cfg.volume <= 0 || cfg.volume > MaxVolume {
		cfg.volume = DefaultVolume
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           id,
		guildID:      cfg.guildID,
		mode:         cfg.mode,
		backend:      cfg.backend,
		mat:          cfg.mat,
		notifier:     cfg.notifier,
		refill:       cfg.refill,
		onDestroy:    cfg.onDestroy,
		log:          cfg.log.With().Str("guild", cfg.guildID).Str("session", id).Str("mode", cfg.mode.String()).Logger(),
		ctx:          ctx,
		cancel:       cancel,
		ops:          make(chan op),
		events:       make(chan Event, eventBuffer),
		done:         make(chan struct{}),
		state:        StateDisconnected,
		queue:        queue.New(cfg.historyLimit),
		volume:       cfg.volume,
		eq:           lavalink.PresetFlat,
		controllerID: cfg.controllerID,
		startedAt:    time.Now(),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.done)
	s.log.Debug().Msg("session loop started")

	for {
		select {
		case o := <-s.ops:
			o.res <- o.fn(o.ctx)
		case ev := <-s.events:
			s.handleEvent(ev)
		}
		if s.state == StateDestroyed {
			s.log.Debug().Msg("session loop stopped")
			return
		}
	}
}

// do runs fn on the session loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := op{ctx: ctx, fn: fn, res: make(chan error, 1)}
	select {
	case s.ops <- o:
	case <-s.done:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-o.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver queues a backend event; it drops the event once the session is gone.
func (s *Session) deliver(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) GuildID() string { return s.guildID }
func (s *Session) Mode() Mode      { return s.mode }

// Done is closed when the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Connect joins channelID. Joining the current channel is a no-op; a move
// leaves the old channel first. Any failure tears the session down.
func (s *Session) Connect(ctx context.Context, channelID string) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.channelID == channelID && s.state != StateDisconnected {
			return nil
		}

		if s.state != StateDisconnected {
			s.log.Info().Str("from", s.channelID).Str("to", channelID).Msg("moving voice channel")
			if err := s.backend.Disconnect(ctx, s.guildID); err != nil {
				s.log.Warn().Err(err).Msg("disconnect before move")
			}
			s.state = StateDisconnected
		}

		if err := s.backend.Connect(ctx, s.guildID, channelID); err != nil {
			s.log.Error().Err(err).Str("channel", channelID).Msg("voice connect failed")
			s.teardown(ctx)
			return backendErr("connect", err)
		}
		s.channelID = channelID
		s.state = StateConnected
		s.log.Info().Str("channel", channelID).Msg("voice connected")

		if err := s.backend.SetVolume(ctx, s.guildID, s.volume); err != nil {
			s.log.Warn().Err(err).Msg("apply volume")
		}

		// a move interrupts the current track; start it again in the new channel
		if s.current != nil {
			if err := s.backend.Play(ctx, s.guildID, *s.current); err != nil {
				s.log.Warn().Err(err).Msg("resume after move")
				s.current = nil
				s.advance(ctx)
				return nil
			}
			s.state = StatePlaying
		}
		return nil
	})
}

type EnqueueOptions struct {
	Priority   bool // insert at the head of the queue
	Requester  string
	Privileged bool
}

type EnqueueResult struct {
	Added   int
	Started bool // playback started with the first added track
	Pending int
}

// Enqueue adds tracks and starts playback if the session is idle. The first
// non-privileged requester in a session becomes its DJ.
func (s *Session) Enqueue(ctx context.Context, tracks []track.Track, opts EnqueueOptions) (EnqueueResult, error) {
	var res EnqueueResult
	err := s.do(ctx, func(ctx context.Context) error {
		if s.state == StateDestroyed {
			return ErrDestroyed
		}
		if len(tracks) == 0 {
			return nil
		}
		if s.dj == "" && !opts.Privileged && opts.Requester != "" {
			s.dj = opts.Requester
			s.log.Info().Str("dj", s.dj).Msg("dj claimed")
		}

		if opts.Priority {
			s.queue.PushFront(tracks...)
		} else {
			s.queue.PushBack(tracks...)
		}
		res.Added = len(tracks)
		s.log.Info().Int("added", len(tracks)).Bool("priority", opts.Priority).Int("pending", s.queue.Len()).Msg("tracks queued")

		if s.current == nil && s.state == StateConnected {
			s.failures = 0
			s.advance(ctx)
			res.Started = s.current != nil
		} else if s.controllerID != "" {
			s.notifier.Notify(s.controllerID, Notice{Status: StatusAdded, Track: &tracks[0]})
		}
		res.Pending = s.queue.Len()
		return nil
	})
	return res, err
}

// advance pops tracks until one starts playing or the queue (after an
// optional refill) is exhausted.
func (s *Session) advance(ctx context.Context) {
	s.current = nil
	s.ballots.Clear(vote.ActionSkip)
	refilled := false

	for {
		if s.failures >= maxFailures {
			s.log.Warn().Int("failures", s.failures).Msg("too many failed tracks, going idle")
			s.idle()
			return
		}

		next, ok := s.queue.PopNext()
		if !ok {
			if s.refill != nil && !refilled {
				refilled = true
				more, err := s.refill(ctx)
				if err != nil {
					s.log.Error().Err(err).Msg("refill failed")
				} else if len(more) > 0 {
					s.queue.PushBack(more...)
					s.log.Info().Int("tracks", len(more)).Msg("queue refilled")
					continue
				}
			}
			s.idle()
			return
		}

		playable, err := s.mat.Materialize(ctx, next)
		if err != nil {
			s.trackFailed(next, err)
			continue
		}
		if err := s.backend.Play(ctx, s.guildID, playable); err != nil {
			s.trackFailed(playable, backendErr("play", err))
			continue
		}

		s.current = &playable
		s.state = StatePlaying
		s.log.Info().Str("track", playable.Display()).Str("requester", playable.Requester).Msg("track started")
		s.notifier.Notify(s.controllerID, Notice{Status: StatusPlaying, Track: &playable})
		return
	}
}

func (s *Session) trackFailed(t track.Track, err error) {
	s.failures++
	s.queue.SkipCurrent()
	s.log.Warn().Err(err).Str("track", t.Display()).Int("failures", s.failures).Msg("skipping track")
	s.notifier.Notify(s.controllerID, Notice{Status: StatusTrackFailed, Track: &t, Err: err})
}

func (s *Session) idle() {
	s.current = nil
	s.queue.SkipCurrent()
	if s.state != StateDestroyed && s.state != StateDisconnected {
		s.state = StateConnected
	}
	s.log.Info().Msg("queue finished")
	s.notifier.Notify(s.controllerID, Notice{Status: StatusQueueEnded})
}

func (s *Session) handleEvent(ev Event) {
	if s.state == StateDestroyed {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, eventTimeout)
	defer cancel()

	if ev.Kind == EventVoiceClosed {
		if ev.fatalClose() {
			s.log.Warn().Int("code", ev.Code).Str("reason", ev.Err).Msg("voice closed, tearing down")
			s.teardown(ctx)
		}
		return
	}

	if s.current == nil || ev.TrackID != s.current.ID {
		s.log.Debug().Str("reason", string(ev.Reason)).Msg("stale track event ignored")
		return
	}

	switch ev.Kind {
	case EventTrackEnd:
		if !ev.Reason.Advances() {
			return
		}
		if ev.Reason == EndFinished {
			s.failures = 0
		} else if ev.Reason == EndLoadFailed {
			s.failures++
			s.queue.SkipCurrent()
		}
		s.advance(ctx)
	case EventTrackException:
		t := *s.current
		s.trackFailed(t, &BackendError{Op: "playback", Err: errors.New(ev.Err)})
		s.advance(ctx)
	}
}

// Pause is a no-op when already paused.
func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, s.pause)
}

func (s *Session) pause(ctx context.Context) error {
	switch {
	case s.state == StateDestroyed:
		return ErrDestroyed
	case s.state == StatePaused:
		return nil
	case s.current == nil:
		return ErrNothingPlaying
	}
	if err := s.backend.Pause(ctx, s.guildID, true); err != nil {
		return backendErr("pause", err)
	}
	s.state = StatePaused
	s.log.Info().Msg("paused")
	return nil
}

// Resume is a no-op when already playing.
func (s *Session) Resume(ctx context.Context) error {
	return s.do(ctx, s.resume)
}

func (s *Session) resume(ctx context.Context) error {
	switch {
	case s.state == StateDestroyed:
		return ErrDestroyed
	case s.state == StatePlaying:
		return nil
	case s.current == nil:
		return ErrNothingPlaying
	}
	if err := s.backend.Pause(ctx, s.guildID, false); err != nil {
		return backendErr("resume", err)
	}
	s.state = StatePlaying
	s.log.Info().Msg("resumed")
	return nil
}

// Skip moves past the current track. expectedID guards against skipping a
// track that already ended on its own; pass "" to skip whatever plays.
func (s *Session) Skip(ctx context.Context, expectedID string) error {
	return s.do(ctx, func(ctx context.Context) error { return s.skip(ctx, expectedID) })
}

func (s *Session) skip(ctx context.Context, expectedID string) error {
	if s.state == StateDestroyed {
		return ErrDestroyed
	}
	if s.current == nil {
		return ErrNothingPlaying
	}
	if expectedID != "" && s.current.ID != expectedID {
		return nil
	}

	s.log.Info().Str("track", s.current.Display()).Msg("skipping")
	s.queue.SkipCurrent()
	s.failures = 0
	s.advance(ctx)

	// nothing replaced the skipped track on the node
	if s.current == nil {
		if err := s.backend.Stop(ctx, s.guildID); err != nil {
			return backendErr("stop", err)
		}
	}
	return nil
}

// Stop clears the queue, leaves voice and destroys the session.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		s.teardown(ctx)
		return nil
	})
}

// Destroy is Stop without the error for an already destroyed session.
func (s *Session) Destroy(ctx context.Context) {
	if err := s.Stop(ctx); err != nil && !errors.Is(err, ErrDestroyed) {
		s.log.Warn().Err(err).Msg("destroy")
	}
}

func (s *Session) teardown(ctx context.Context) {
	if s.state == StateDestroyed {
		return
	}
	s.queue.Clear()
	s.current = nil
	s.ballots.Reset()
	if s.state != StateDisconnected {
		if err := s.backend.Disconnect(ctx, s.guildID); err != nil {
			s.log.Warn().Err(err).Msg("disconnect")
		}
	}
	s.state = StateDestroyed
	s.cancel()
	s.onDestroy(s)
	s.log.Info().Dur("uptime", time.Since(s.startedAt)).Msg("session destroyed")
}

func (s *Session) Shuffle(ctx context.Context) error {
	return s.do(ctx, s.shuffle)
}

func (s *Session) shuffle(context.Context) error {
	if s.state == StateDestroyed {
		return ErrDestroyed
	}
	if s.queue.Len() < queue.MinShuffle {
		return ErrShuffleTooSmall
	}
	s.queue.Shuffle()
	return nil
}

// ToggleRepeat flips repeat-current and returns the new value.
func (s *Session) ToggleRepeat(ctx context.Context) (bool, error) {
	var on bool
	err := s.do(ctx, func(context.Context) error {
		if s.state == StateDestroyed {
			return ErrDestroyed
		}
		on = s.queue.ToggleRepeat()
		return nil
	})
	return on, err
}

// SetVolume clamps v to [0, MaxVolume] and returns the applied value.
func (s *Session) SetVolume(ctx context.Context, v int) (int, error) {
	v = max(0, min(MaxVolume, v))
	err := s.do(ctx, func(ctx context.Context) error {
		if s.state == StateDestroyed {
			return ErrDestroyed
		}
		if err := s.backend.SetVolume(ctx, s.guildID, v); err != nil {
			return backendErr("volume", err)
		}
		s.volume = v
		return nil
	})
	return v, err
}

// SetEqualizer is refused on autoplay sessions.
func (s *Session) SetEqualizer(ctx context.Context, p lavalink.Preset) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.state == StateDestroyed {
			return ErrDestroyed
		}
		if s.mode == ModeAutoplay {
			return ErrAutoplayActive
		}
		if err := s.backend.SetEqualizer(ctx, s.guildID, p); err != nil {
			return backendErr("equalizer", err)
		}
		s.eq = p
		return nil
	})
}

// SetController moves notices to another text channel.
func (s *Session) SetController(ctx context.Context, channelID string) error {
	return s.do(ctx, func(context.Context) error {
		s.controllerID = channelID
		return nil
	})
}
