// Package debug is the category-tagged log used across the control side.
// Nothing here is safe to call from the audio callback.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
)

// DefaultPath is where Enable writes when given an empty path.
const DefaultPath = "~/.config/go-loopcore/debug.log"

var (
	mu      sync.Mutex
	file    *os.File
	logger  = newLogger(io.Discard)
	enabled bool

	counters = make(map[string]int)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Enable starts logging to path, truncating it. "~" is expanded.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger.SetOutput(f)
	enabled = true
	logger.WithField("cat", "debug").Info("=== debug logging started ===")
	return nil
}

// EnableWriter logs to w instead of a file.
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
	enabled = true
}

// Disable stops logging and closes the log file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	logger.SetOutput(io.Discard)
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// SetLevel takes a logrus level name ("debug", "info", "warn", ...).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	logger.SetLevel(lvl)
	mu.Unlock()
	return nil
}

// Log writes a debug-level line tagged with category.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	logger.WithField("cat", category).Debugf(format, args...)
}

// Warn is Log at warning level, for failures the user should see.
func Warn(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	logger.WithField("cat", category).Warnf(format, args...)
}

// LogEvery logs only every n-th call with the same category and format. Use
// it for high-frequency events.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n > 0 && count%n == 0 {
		Log(category, "%s (every %d, count=%d)", fmt.Sprintf(format, args...), n, count)
	}
}
