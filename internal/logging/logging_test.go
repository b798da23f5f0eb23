package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	log, closer, err := New(Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log.Info().Str("guild", "1").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"guild":"1"`)
	require.Contains(t, string(data), `"message":"hello"`)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	require.Error(t, err)

	_, _, err = New(Options{Format: "xml"})
	require.Error(t, err)
}
