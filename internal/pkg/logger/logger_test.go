package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestInit_FileWriters(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	dir := t.TempDir()
	require.NoError(t, Init(Config{
		Level:         "debug",
		Format:        "json",
		FileEnabled:   true,
		FilePath:      dir,
		RotationSize:  1,
		RetentionDays: 1,
		ServiceName:   "quant-test",
	}))

	log.Error().Msg("boom")

	_, err := os.Stat(filepath.Join(dir, "app.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "error.log"))
	assert.NoError(t, err)
}

func TestMinLevelWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &minLevelWriter{Writer: &buf, min: zerolog.ErrorLevel}

	n, err := w.WriteLevel(zerolog.InfoLevel, []byte("info\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, buf.String())

	_, err = w.WriteLevel(zerolog.ErrorLevel, []byte("error\n"))
	require.NoError(t, err)
	assert.Equal(t, "error\n", buf.String())
}

func TestNewQueryLogger_NoPath(t *testing.T) {
	l := NewQueryLogger("", 1, 1)
	assert.Equal(t, log.Logger.GetLevel(), l.GetLevel())
}
