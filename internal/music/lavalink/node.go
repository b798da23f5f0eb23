// Package lavalink is a minimal Lavalink v4 client: one node, its websocket
// event stream and the REST calls the player needs.
package lavalink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/pkg/retrylimit"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

var ErrNotReady = errors.New("lavalink node is not ready")

type NodeConfig struct {
	Host       string
	Port       int
	Password   string
	Secure     bool
	UserID     string // bot user id
	ClientName string
}

func (c NodeConfig) baseURL(ws bool) string {
	scheme := "http"
	switch {
	case ws && c.Secure:
		scheme = "wss"
	case ws:
		scheme = "ws"
	case c.Secure:
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Node holds one node connection. Handler is called from the read loop, in
// frame order, and must not block for long.
type Node struct {
	cfg     NodeConfig
	log     zerolog.Logger
	http    *http.Client
	lim     *retrylimit.AdaptiveLimiter
	handler func(Event)

	mu        sync.RWMutex
	sessionID string
	stats     Stats
	ready     chan struct{}
}

func NewNode(cfg NodeConfig, log zerolog.Logger, handler func(Event)) *Node {
	if cfg.ClientName == "" {
		cfg.ClientName = "jukebox/1.0"
	}
	if handler == nil {
		handler = func(Event) {}
	}
	return &Node{
		cfg:     cfg,
		log:     log.With().Str("component", "lavalink").Str("node", cfg.Host).Logger(),
		http:    &http.Client{Timeout: 15 * time.Second},
		lim:     retrylimit.NewAdaptiveLimiter(10, 1, 50, 1, 0.5),
		handler: handler,
		ready:   make(chan struct{}),
	}
}

// Run keeps the websocket connected until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		connected, err := n.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = minBackoff
		}
		n.log.Warn().Err(err).Dur("retry_in", backoff).Msg("websocket disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (n *Node) connectOnce(ctx context.Context) (bool, error) {
	headers := http.Header{}
	headers.Set("Authorization", n.cfg.Password)
	headers.Set("User-Id", n.cfg.UserID)
	headers.Set("Client-Name", n.cfg.ClientName)
	if sid := n.SessionID(); sid != "" {
		headers.Set("Session-Id", sid)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, n.cfg.baseURL(true)+"/v4/websocket", headers)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	n.log.Info().Msg("websocket connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			n.setSession("")
			return true, fmt.Errorf("read: %w", err)
		}
		n.handleFrame(data)
	}
}

func (n *Node) handleFrame(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		n.log.Debug().Err(err).Msg("bad frame")
		return
	}

	switch msg.Op {
	case "ready":
		n.setSession(msg.SessionID)
		n.log.Info().Str("session", msg.SessionID).Bool("resumed", msg.Resumed).Msg("node ready")
		n.handler(Event{Type: EventReady, Resumed: msg.Resumed})
	case "stats":
		var s Stats
		if err := json.Unmarshal(data, &s); err == nil {
			n.mu.Lock()
			n.stats = s
			n.mu.Unlock()
		}
	case "playerUpdate":
		// position updates are not tracked
	case "event":
		ev := Event{
			Type:    EventType(msg.Type),
			GuildID: msg.GuildID,
			Reason:  msg.Reason,
			Code:    msg.Code,
		}
		if msg.Track != nil {
			ev.Track = msg.Track.Encoded
		}
		if msg.Exception != nil {
			ev.Err = msg.Exception.Message
		}
		if ev.Type == EventVoiceClosed {
			ev.Err = msg.Reason
		}
		n.log.Debug().Str("type", msg.Type).Str("guild", msg.GuildID).Str("reason", msg.Reason).Msg("event")
		n.handler(ev)
	}
}

func (n *Node) setSession(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessionID = id
	if id == "" {
		return
	}
	select {
	case <-n.ready:
	default:
		close(n.ready)
	}
}

func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

func (n *Node) Stats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// WaitReady blocks until the node has sent its first ready op.
func (n *Node) WaitReady(ctx context.Context) error {
	select {
	case <-n.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
