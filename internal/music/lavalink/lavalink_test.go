package lavalink

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/sources"
)

type fakeNode struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	patches  []map[string]any
	deletes  []string
	frames   []string
	authSeen string
}

func newFakeNode(t *testing.T, frames ...string) *fakeNode {
	f := &fakeNode{t: t, frames: frames}
	up := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/websocket", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authSeen = r.Header.Get("Authorization")
		f.mu.Unlock()
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, fr := range f.frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(fr))
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/v4/loadtracks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id := r.URL.Query().Get("identifier")
		switch {
		case strings.HasPrefix(id, "ytsearch:"):
			io.WriteString(w, `{"loadType":"search","data":[{"encoded":"E1","info":{"title":"Found","author":"Someone","length":180000,"uri":"https://youtu.be/1","sourceName":"youtube"}},{"encoded":"E2","info":{"title":"Second"}}]}`)
		case strings.Contains(id, "list="):
			io.WriteString(w, `{"loadType":"playlist","data":{"info":{"name":"Mix"},"tracks":[{"encoded":"P1","info":{"title":"A"}},{"encoded":"P2","info":{"title":"B"}}]}}`)
		case strings.Contains(id, "broken"):
			io.WriteString(w, `{"loadType":"error","data":{"message":"unavailable","severity":"common"}}`)
		case strings.Contains(id, "live"):
			io.WriteString(w, `{"loadType":"track","data":{"encoded":"L1","info":{"title":"Radio","isStream":true}}}`)
		default:
			io.WriteString(w, `{"loadType":"empty","data":{}}`)
		}
	})
	mux.HandleFunc("/v4/sessions/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPatch:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.patches = append(f.patches, body)
			io.WriteString(w, `{}`)
		case http.MethodDelete:
			f.deletes = append(f.deletes, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeNode) config() NodeConfig {
	host, port, err := net.SplitHostPort(strings.TrimPrefix(f.srv.URL, "http://"))
	require.NoError(f.t, err)
	p, _ := strconv.Atoi(port)
	return NodeConfig{Host: host, Port: p, Password: "secret", UserID: "bot"}
}

func TestLoadTracks(t *testing.T) {
	f := newFakeNode(t)
	n := NewNode(f.config(), zerolog.Nop(), nil)
	ctx := context.Background()

	res, err := n.LoadTracks(ctx, "ytsearch:found")
	require.NoError(t, err)
	require.Equal(t, sources.LoadSearch, res.Type)
	require.Len(t, res.Tracks, 2)
	require.Equal(t, "E1", res.Tracks[0].ID)
	require.Equal(t, 3*time.Minute, res.Tracks[0].Duration)
	require.Equal(t, "youtube", res.Tracks[0].Source)

	res, err = n.LoadTracks(ctx, "https://youtube.com/watch?v=x&list=y")
	require.NoError(t, err)
	require.Equal(t, sources.LoadPlaylist, res.Type)
	require.Equal(t, "Mix", res.PlaylistName)
	require.Len(t, res.Tracks, 2)

	res, err = n.LoadTracks(ctx, "https://radio.example/live")
	require.NoError(t, err)
	require.True(t, res.Tracks[0].IsStream)

	res, err = n.LoadTracks(ctx, "https://nothing.example")
	require.NoError(t, err)
	require.Equal(t, sources.LoadEmpty, res.Type)
	require.Empty(t, res.Tracks)

	_, err = n.LoadTracks(ctx, "https://broken.example")
	require.ErrorContains(t, err, "unavailable")
}

func TestUpdatePlayerRequiresSession(t *testing.T) {
	f := newFakeNode(t)
	n := NewNode(f.config(), zerolog.Nop(), nil)
	err := n.UpdatePlayer(context.Background(), "g1", PlayerUpdate{}, false)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestRunDeliversEvents(t *testing.T) {
	f := newFakeNode(t,
		`{"op":"ready","resumed":false,"sessionId":"s1"}`,
		`{"op":"stats","players":2,"playingPlayers":1,"uptime":60000,"memory":{"used":10},"cpu":{"cores":4}}`,
		`{"op":"event","type":"TrackEndEvent","guildId":"g1","track":{"encoded":"E1","info":{}},"reason":"finished"}`,
		`{"op":"event","type":"TrackExceptionEvent","guildId":"g1","track":{"encoded":"E2","info":{}},"exception":{"message":"boom","severity":"fault"}}`,
	)

	events := make(chan Event, 8)
	n := NewNode(f.config(), zerolog.Nop(), func(ev Event) { events <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.NoError(t, n.WaitReady(waitCtx))
	require.Equal(t, "s1", n.SessionID())

	next := func() Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}

	require.Equal(t, EventReady, next().Type)
	end := next()
	require.Equal(t, EventTrackEnd, end.Type)
	require.Equal(t, "g1", end.GuildID)
	require.Equal(t, "E1", end.Track)
	require.Equal(t, "finished", end.Reason)

	exc := next()
	require.Equal(t, EventTrackError, exc.Type)
	require.Equal(t, "boom", exc.Err)

	require.Equal(t, 2, n.Stats().Players)
	require.Equal(t, time.Minute, n.Stats().UptimeDuration())

	f.mu.Lock()
	require.Equal(t, "secret", f.authSeen)
	f.mu.Unlock()

	vol := 40
	require.NoError(t, n.UpdatePlayer(ctx, "g1", PlayerUpdate{Volume: &vol, Track: &UpdateTrack{}}, false))
	require.NoError(t, n.DestroyPlayer(ctx, "g1"))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.patches, 1)
	require.EqualValues(t, 40, f.patches[0]["volume"])
	trackField, ok := f.patches[0]["track"].(map[string]any)
	require.True(t, ok)
	require.Nil(t, trackField["encoded"])
	require.Equal(t, []string{"/v4/sessions/s1/players/g1"}, f.deletes)
}

func TestPresets(t *testing.T) {
	p, err := ParsePreset(" Metal ")
	require.NoError(t, err)
	require.Equal(t, PresetMetal, p)

	bands := p.Bands()
	require.Len(t, bands, bandCount)
	require.Equal(t, 8, bands[8].Band)
	require.InDelta(t, 0.175, bands[8].Gain, 1e-9)

	for _, b := range PresetFlat.Bands() {
		require.Zero(t, b.Gain)
	}

	_, err = ParsePreset("loud")
	require.Error(t, err)
}
