package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func cli(t *testing.T, dbPath string, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"--driver", "datastore", "--path", dbPath}, args...), &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestClassify(t *testing.T) {
	out, _, code := cli(t, filepath.Join(t.TempDir(), "db.json"), "classify", "https://open.spotify.com/album/1A2GTWGtFfWp7KSQTwWOyo")
	require.Equal(t, 0, code)
	require.Contains(t, out, "kind:  album")
	require.Contains(t, out, "1A2GTWGtFfWp7KSQTwWOyo")

	out, _, code = cli(t, filepath.Join(t.TempDir(), "db.json"), "classify", "never", "gonna")
	require.Equal(t, 0, code)
	require.Contains(t, out, "kind:  search")
}

func TestUnknownCommand(t *testing.T) {
	_, errOut, code := cli(t, filepath.Join(t.TempDir(), "db.json"), "dance")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "unknown command")
	require.Contains(t, errOut, "autoplay-list")
}

func TestMissingArgs(t *testing.T) {
	_, errOut, code := cli(t, filepath.Join(t.TempDir(), "db.json"), "autoplay-set", "g1")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "usage: autoplay-set")
}

func TestAutoplayLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.json")

	_, errOut, code := cli(t, db, "autoplay-enable", "g1")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "no autoplay setup")

	_, _, code = cli(t, db, "autoplay-set", "g1", "v1", "t1", "https://example.com/list")
	require.Equal(t, 0, code)

	out, _, code := cli(t, db, "autoplay-enable", "g1")
	require.Equal(t, 0, code)
	require.Contains(t, out, "enabled=true")

	out, _, code = cli(t, db, "autoplay-list")
	require.Equal(t, 0, code)
	require.Contains(t, out, "g1")
	require.Contains(t, out, "https://example.com/list")

	out, _, code = cli(t, db, "autoplay-disable", "g1")
	require.Equal(t, 0, code)
	require.Contains(t, out, "enabled=false")
}

func TestChannels(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db.json")

	out, _, code := cli(t, db, "channels", "g1")
	require.Equal(t, 0, code)
	require.Contains(t, out, "no whitelisted channels")

	out, _, code = cli(t, db, "channels", "--add", "c1,c2", "g1")
	require.Equal(t, 0, code)
	require.Contains(t, out, "c1")
	require.Contains(t, out, "c2")

	out, _, code = cli(t, db, "channels", "--remove", "c1", "g1")
	require.Equal(t, 0, code)
	require.NotContains(t, out, "c1")
	require.Contains(t, out, "c2")
}
