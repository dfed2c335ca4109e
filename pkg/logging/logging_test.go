package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/nsign/pkg/config"
)

func TestConfigureWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nsignd.log")
	logger := New("nsignd")
	require.NoError(t, logger.Configure(config.LoggingConfig{Level: "DEBUG", FilePath: path}))
	t.Cleanup(func() { logger.Close() })

	ipcLogger := logger.Component("ipc")
	ipcLogger.Debug().Str("method", "ping").Msg("handled")
	logger.Printf("listening on %s", "sock")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"component":"nsignd.ipc"`)
	assert.Contains(t, out, `"method":"ping"`)
	assert.Contains(t, out, `"message":"listening on sock"`)
}

func TestNewWriterTargetsGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "bridge")
	logger.Info().Msg("hello")
	logger.Debug().Msg("hidden")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	err := New("x").Configure(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	logger := New("x")
	require.NoError(t, logger.Configure(config.LoggingConfig{Level: "warn", FilePath: path}))
	t.Cleanup(func() { logger.Close() })

	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestRollingFileRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")
	r, err := newRollingFile(path, 1, 2)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	chunk := []byte(strings.Repeat("a", 600*1024))
	for i := 0; i < 5; i++ {
		_, err := r.Write(chunk)
		require.NoError(t, err)
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(name)
		require.NoError(t, err, name)
		assert.LessOrEqual(t, info.Size(), int64(1024*1024))
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRollingFileWithoutBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.log")
	r, err := newRollingFile(path, 1, 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	chunk := []byte(strings.Repeat("b", 700*1024))
	for i := 0; i < 3; i++ {
		_, err := r.Write(chunk)
		require.NoError(t, err)
	}
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}
