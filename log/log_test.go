package log

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	pclog "github.com/pingcap/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestStringToZapLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.FatalLevel, StringToZapLogLevel("fatal"))
	assert.Equal(t, zapcore.ErrorLevel, StringToZapLogLevel("ERROR"))
	assert.Equal(t, zapcore.WarnLevel, StringToZapLogLevel("warn"))
	assert.Equal(t, zapcore.WarnLevel, StringToZapLogLevel("warning"))
	assert.Equal(t, zapcore.DebugLevel, StringToZapLogLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, StringToZapLogLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, StringToZapLogLevel("bogus"))
}

func TestInitLoggerFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "omvcc-log")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "omvcc.log")
	require.NoError(t, InitLogger("info", file))
	pclog.Info("hello", zap.Uint64("start-ts", 42))
	pclog.Debug("filtered")
	require.NoError(t, pclog.Sync())

	data, err := ioutil.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "start-ts=42")
	assert.NotContains(t, string(data), "filtered")

	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, pclog.GetLevel())
	require.NoError(t, InitLogger("info", ""))
}
