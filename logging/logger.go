// Package logging builds the service's zap logger: terminal output plus
// optional per-level rotating files, with a level that can be changed
// while running.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a *zap.Logger that owns its file writers and dynamic level.
type Logger struct {
	*zap.Logger
	level   zap.AtomicLevel
	writers []*levelWriter
}

// New creates a Logger from config. With neither terminal nor file output
// enabled the logger discards everything.
func New(config Config) (*Logger, error) {
	lvl, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	l := &Logger{level: zap.NewAtomicLevelAt(lvl)}

	var cores []zapcore.Core
	if config.LogInTerminal {
		cores = append(cores, zapcore.NewCore(config.encoder(), zapcore.Lock(os.Stdout), l.level))
	}
	if config.LogToFile {
		for level := zapcore.DebugLevel; level <= zapcore.FatalLevel; level++ {
			w := newLevelWriter(config, level.String())
			l.writers = append(l.writers, w)
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(config.encoderConfig()),
				zapcore.AddSync(w),
				exactLevel(level, l.level),
			))
		}
	}

	var opts []zap.Option
	if config.ShowCaller {
		opts = append(opts, zap.AddCaller())
	}
	opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	l.Logger = zap.New(zapcore.NewTee(cores...), opts...)
	return l, nil
}

// exactLevel enables only level, and only while the dynamic minimum allows it.
func exactLevel(level zapcore.Level, min zap.AtomicLevel) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l == level && min.Enabled(l)
	}
}

// SetLevel changes the minimum level of every output.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// Close flushes buffered entries and closes the log files.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	var lastErr error
	for _, w := range l.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
