package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging to a file.
var L *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	logPrefix     = "heaptop-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	LogDir  string     // Directory for log files. Default: ~/.heaptop/logs
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	Now     func() time.Time
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	logDir := opts.LogDir
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		logDir = filepath.Join(home, ".heaptop", "logs")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}

	// Best effort.
	cleanOldLogs(logDir, now())

	filename := filepath.Join(logDir, logName(now()))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	L = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// cleanOldLogs removes heaptop log files dated before the retention window.
func cleanOldLogs(logDir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		day, ok := logDay(entry.Name())
		if ok && day.Before(cutoff) {
			os.Remove(filepath.Join(logDir, entry.Name()))
		}
	}
}

// logName is the file heaptop writes to on day t.
func logName(t time.Time) string {
	return logPrefix + t.Format(time.DateOnly) + logSuffix
}

// logDay parses the day out of a name produced by logName.
func logDay(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
		return time.Time{}, false
	}
	day, err := time.Parse(time.DateOnly, strings.TrimSuffix(strings.TrimPrefix(name, logPrefix), logSuffix))
	return day, err == nil
}

// BeginSession tags every later record with the monitored arena and
// workload shape, so runs with different settings can be told apart in
// the same day's file. It returns the session id.
func BeginSession(arenaPages int64, workers int, now time.Time) string {
	id := fmt.Sprintf("%d-%x", os.Getpid(), now.UnixNano()&0xffffff)
	L = L.With(slog.Group("session",
		slog.String("id", id),
		slog.Int64("arena_pages", arenaPages),
		slog.Int("workers", workers),
	))
	return id
}

// Sample is the slice of heap and workload state kept in the log.
type Sample struct {
	CachedPages int64
	InUsePages  int64
	FreePages   int64
	Allocs      int64
	Frees       int64
	Failures    int64
}

// Sampler writes heap samples at most once per Every, and skips samples
// identical to the last one written.
type Sampler struct {
	Every time.Duration
	Now   func() time.Time

	last    time.Time
	prev    Sample
	written bool
}

// Record logs v if it is due and reports whether it was written.
func (s *Sampler) Record(v Sample) bool {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now()
	if s.written && (t.Sub(s.last) < s.Every || v == s.prev) {
		return false
	}
	L.Debug("heap sample",
		"cached_pages", v.CachedPages,
		"in_use_pages", v.InUsePages,
		"free_pages", v.FreePages,
		"allocs", v.Allocs,
		"frees", v.Frees,
		"failures", v.Failures)
	s.last, s.prev, s.written = t, v, true
	return true
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
