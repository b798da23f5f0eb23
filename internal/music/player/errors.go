package player

import (
	"errors"
	"fmt"

	"github.com/keshon/jukebox/internal/music/vote"
)

var (
	ErrDestroyed       = errors.New("session is destroyed")
	ErrNotConnected    = errors.New("not connected to a voice channel")
	ErrNothingPlaying  = errors.New("no track is currently playing")
	ErrShuffleTooSmall = errors.New("not enough tracks in queue to shuffle")
	ErrAutoplayActive  = errors.New("autoplay is running in this guild")
	ErrAlreadyPaused   = errors.New("playback is already paused")
	ErrNotPaused       = errors.New("playback is not paused")
)

// RejectedError is an authorization refusal; nothing was changed.
type RejectedError struct {
	Action vote.Action
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Action, e.Reason)
}

// BackendError wraps a failed audio backend command.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
