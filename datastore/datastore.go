// Package datastore is an in-memory key-value store persisted as one JSON
// file, with atomic writes, rolling backups and periodic autosave.
package datastore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrClosed      = errors.New("datastore is closed")
	ErrMemoryLimit = errors.New("datastore memory limit exceeded")
)

// Options tune persistence. Zero values fall back to the defaults below.
type Options struct {
	AutoSave time.Duration
	MaxBytes int64 // <0 disables the limit
	Backups  int   // <0 disables backups
	Logger   zerolog.Logger
}

const (
	defaultAutoSave = 10 * time.Second
	defaultMaxBytes = 100 << 20
	defaultBackups  = 3
)

func (o Options) withDefaults() Options {
	if o.AutoSave <= 0 {
		o.AutoSave = defaultAutoSave
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = defaultMaxBytes
	}
	if o.Backups == 0 {
		o.Backups = defaultBackups
	}
	return o
}

type Store struct {
	path string
	opts Options
	log  zerolog.Logger

	mu     sync.RWMutex
	data   map[string]json.RawMessage
	size   int64
	dirty  bool
	closed bool

	// serializes file writes
	saveMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

// Open loads path, creating it with an empty object when missing, and
// starts the autosave loop.
func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("datastore: empty path")
	}
	opts = opts.withDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		path: path,
		opts: opts,
		log:  opts.Logger.With().Str("component", "datastore").Logger(),
		data: make(map[string]json.RawMessage),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := replaceFile(path, []byte("{}")); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if s.data == nil {
			s.data = make(map[string]json.RawMessage)
		}
		for _, v := range s.data {
			s.size += int64(len(v))
		}
	}

	go s.autosave()
	return s, nil
}

// Put stores value under key as JSON.
func (s *Store) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	size := s.size - int64(len(s.data[key])) + int64(len(raw))
	if s.opts.MaxBytes > 0 && size > s.opts.MaxBytes {
		s.log.Warn().Str("key", key).Int64("size", size).Msg("write rejected by memory limit")
		return ErrMemoryLimit
	}
	s.data[key] = raw
	s.size = size
	s.dirty = true
	return nil
}

// Get decodes the value under key into out and reports whether it existed.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return false, ErrClosed
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Flush writes pending changes to disk now.
func (s *Store) Flush() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return s.save()
}

// Close stops autosave and writes the final state.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return s.save()
}

func (s *Store) autosave() {
	defer close(s.done)
	tick := time.NewTicker(s.opts.AutoSave)
	defer tick.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-tick.C:
			if err := s.save(); err != nil {
				s.log.Error().Err(err).Msg("autosave")
			}
		}
	}
}

func (s *Store) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	body, err := json.MarshalIndent(s.data, "", "  ")
	s.dirty = false
	keys := len(s.data)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if s.opts.Backups > 0 {
		if err := s.backup(); err != nil {
			s.log.Warn().Err(err).Msg("backup")
		}
	}
	if err := replaceFile(s.path, body); err != nil {
		s.markDirty()
		return err
	}
	if written, err := os.ReadFile(s.path); err != nil || !bytes.Equal(written, body) {
		s.markDirty()
		return fmt.Errorf("verify %s: content mismatch", s.path)
	}
	s.log.Debug().Int("keys", keys).Msg("saved")
	return nil
}

func (s *Store) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// backup copies the current file aside and prunes the oldest copies.
func (s *Store) backup() error {
	current, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	name := s.path + ".backup." + time.Now().Format("20060102_150405.000")
	if err := os.WriteFile(name, current, 0o644); err != nil {
		return err
	}

	old, err := filepath.Glob(s.path + ".backup.*")
	if err != nil || len(old) <= s.opts.Backups {
		return nil
	}
	// the timestamp suffix sorts chronologically
	slices.Sort(old)
	for _, p := range old[:len(old)-s.opts.Backups] {
		_ = os.Remove(p)
	}
	return nil
}

// replaceFile writes body to a synced temp file and renames it over path.
func replaceFile(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
