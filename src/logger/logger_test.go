package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/src/model"
)

func TestInitLoggerWritesJSONToFile(t *testing.T) {
	prev := Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	err := InitLogger(model.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path, TimeFormat: "unix"})
	require.NoError(t, err)

	l := ForTurn("5511999990000", "turn-1")
	l.Info().Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_id":"5511999990000"`)
	assert.Contains(t, string(data), `"turn_id":"turn-1"`)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(model.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
