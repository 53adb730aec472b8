// Package logger provides the process-wide logger.
// Nothing is written until Init is called.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	Level      string `yaml:"level"`                        // debug, info, warn, error
	File       string `yaml:"file"`                         // Rotated log file; empty disables file output
	Console    bool   `yaml:"console"`                      // Also write to stderr
	Format     string `yaml:"format"`                       // console or json (console output only)
	MaxSizeMB  int    `yaml:"maxSizeMB" split_words:"true"` // Rotate after this many megabytes
	MaxBackups int    `yaml:"maxBackups" split_words:"true"`
}

var (
	base    = zap.NewNop()
	sugar   = base.Sugar()
	rotator *lumberjack.Logger
	mu      sync.Mutex
)

// Init initializes the global logger. Calling it again replaces the previous logger.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil || opts.Level == "" {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		// File output is always JSON so it can be grepped and parsed
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}
	if opts.Console {
		var enc zapcore.Encoder
		if opts.Format == "json" {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}

	if len(cores) == 0 {
		base = zap.NewNop()
	} else {
		base = zap.New(zapcore.NewTee(cores...))
	}
	sugar = base.Sugar()
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	base = zap.NewNop()
	sugar = base.Sugar()
}

func closeLocked() {
	_ = base.Sync()
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
}

// L returns the structured logger for callers that attach fields.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugar
}
