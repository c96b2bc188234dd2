// Package logging builds the zap logger used by every component.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"planetgen/internal/config"
)

// New returns a logger writing human readable lines to stderr and, when a
// log file is configured, JSON lines to a rotating file. The returned closer
// flushes and closes the file.
func New(c config.LogConfig) (*zap.Logger, io.Closer, error) {
	return newLogger(c, os.Stderr)
}

func newLogger(c config.LogConfig, console io.Writer) (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", c.Level, err)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(console), level),
	}

	var closer io.Closer = nopCloser{}
	if c.Logfile != "" {
		file := &lumberjack.Logger{
			Filename: c.Logfile,
			MaxSize:  c.MaxSize, // megabytes
			MaxAge:   c.MaxAge,  // days
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
		closer = file
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return log, syncCloser{log: log, c: closer}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type syncCloser struct {
	log *zap.Logger
	c   io.Closer
}

func (s syncCloser) Close() error {
	// Sync on a terminal returns EINVAL on some platforms; only the file
	// result matters.
	_ = s.log.Sync()
	return s.c.Close()
}
