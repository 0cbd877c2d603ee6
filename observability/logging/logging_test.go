package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUsesCanonicalKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "swapd", Env: "test", Level: "debug"})
	logger.Debug("swap committed", slog.String("pair", "native->0xA"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "swap committed", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "swapd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "swapd", Level: "warn"})
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	require.Equal(t, slog.LevelError, ParseLevel(" ERROR "))
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapd.log")
	logger, closer := SetupWithOptions(Options{Service: "swapd", File: path})
	logger.Info("hello")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, "native->0xA", MaskField("pair", "native->0xA").Value.String())
	require.Equal(t, "", MaskField("secret", "").Value.String())
	require.Equal(t, RedactedValue+"wxyz", MaskToken("abcdefghijklmnopqrstuvwxyz"))
	require.Equal(t, RedactedValue, MaskToken("short"))
	require.Contains(t, RedactionAllowlist(), "caller")
}
