// Package log sets up the process-wide structured logger. Code logs through github.com/pingcap/log with zap fields;
// this package only builds and installs the logger.
//
// The default log output level is info, you can change it by:
// - setting log-level in the config file
// - setting environment variable `LOG_LEVEL`
// - calling SetLevel
package log

import (
	"strings"

	pclog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StringToZapLogLevel translates a level name into a zap level. Unknown names map to info.
func StringToZapLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "fatal":
		return zapcore.FatalLevel
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	}
	return zapcore.InfoLevel
}

// InitLogger builds a logger writing to file, or to stderr when file is empty, and installs it as the global
// pingcap/log logger.
func InitLogger(level, file string) error {
	cfg := &pclog.Config{
		Level: strings.ToLower(level),
		File:  pclog.FileLogConfig{Filename: file},
	}
	lg, props, err := pclog.InitLogger(cfg, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return err
	}
	pclog.ReplaceGlobals(lg, props)
	SetLevel(level)
	return nil
}

// SetLevel changes the level of the global logger.
func SetLevel(level string) {
	pclog.SetLevel(StringToZapLogLevel(level))
}
