package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// levelWriter writes one level's entries to {dir}/{level}.log. The file
// is opened lazily so levels that never log create no file.
type levelWriter struct {
	config Config
	level  string
	mu     sync.Mutex
	out    *lumberjack.Logger
}

func newLevelWriter(config Config, level string) *levelWriter {
	return &levelWriter{config: config, level: level}
}

func (w *levelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		if err := os.MkdirAll(w.config.Dir, 0o755); err != nil {
			return 0, err
		}
		w.out = &lumberjack.Logger{
			Filename:   filepath.Join(w.config.Dir, w.level+".log"),
			MaxSize:    w.config.MaxSize,
			MaxBackups: w.config.MaxBackups,
			MaxAge:     w.config.MaxAge,
			Compress:   w.config.Compress,
			LocalTime:  true,
		}
	}
	return w.out.Write(p)
}

func (w *levelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out = nil
	return err
}

var _ io.WriteCloser = (*levelWriter)(nil)
