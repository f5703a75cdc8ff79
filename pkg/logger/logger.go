// Package logger provides opinionated logging capabilities for quill
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger.
type Config struct {
	// Debug enables debug level logging.
	Debug bool `toml:"debug"`

	// File is an optional path for a rotated JSON log file, written in
	// addition to the console.
	File string `toml:"file"`

	// MaxSizeMB is the size at which File is rotated.
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `toml:"max_backups"`
}

func NewLogger(config Config) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Set log level
	level := zap.InfoLevel
	if config.Debug {
		level = zap.DebugLevel
	}

	consoleConfig := encoderConfig
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	if config.File != "" {
		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotator := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    maxSize,
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(rotator),
			level,
		)
		core = zapcore.NewTee(core, fileCore)
	}

	return zap.New(core, zap.AddCaller())
}
