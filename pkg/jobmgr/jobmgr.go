// Package jobmgr runs named background jobs that can be listed and
// cancelled. A job is forgotten once its runner returns.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrRunning    = errors.New("job is already running")
	ErrNotRunning = errors.New("job is not running")
)

type job struct {
	name    string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// Info describes a running job.
type Info struct {
	Name    string
	Started time.Time
}

// Manager is safe for concurrent use.
type Manager struct {
	log  zerolog.Logger
	mu   sync.Mutex
	jobs map[string]*job
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:  log.With().Str("component", "jobs").Logger(),
		jobs: make(map[string]*job),
	}
}

// StartAsync runs runner in its own goroutine under a child of parent.
// Names are unique among running jobs.
func (m *Manager) StartAsync(parent context.Context, name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	j := &job{name: name, started: time.Now(), cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("%s: %w", name, ErrRunning)
	}
	m.jobs[name] = j
	m.mu.Unlock()

	go func() {
		defer close(j.done)
		defer cancel()
		m.log.Debug().Str("job", name).Msg("job started")

		err := runner(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			m.log.Error().Err(err).Str("job", name).Dur("ran", time.Since(j.started)).Msg("job failed")
		default:
			m.log.Debug().Str("job", name).Dur("ran", time.Since(j.started)).Msg("job done")
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels the named job and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	delete(m.jobs, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotRunning)
	}
	j.cancel()
	<-j.done
	return nil
}

// StopAll cancels every job and waits for all of them.
func (m *Manager) StopAll() {
	m.mu.Lock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	clear(m.jobs)
	m.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		<-j.done
	}
}

// List returns the running jobs sorted by name.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, Info{Name: j.name, Started: j.started})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}
