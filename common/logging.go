package common

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const logDateLayout = "2006-01-02"

// LoggerOptions configures CreateLogger
type LoggerOptions struct {
	Level      LogLevel
	Dir        string    // daily log files go here; empty logs to the console only
	Name       string    // log file prefix
	RetainDays int       // log files older than this many days are pruned, 0 keeps all
	Console    io.Writer // defaults to stderr so command output on stdout stays clean
}

// dayFileWriter appends to <dir>/<name>-YYYY-MM-DD.log, switching files at local midnight
// and pruning files that fall out of the retention window when it switches.
type dayFileWriter struct {
	dir        string
	name       string
	retainDays int
	now        func() time.Time

	mu   sync.Mutex
	file *os.File
	day  string
}

func newDayFileWriter(dir, name string, retainDays int) *dayFileWriter {
	return &dayFileWriter{
		dir:        dir,
		name:       name,
		retainDays: retainDays,
		now:        time.Now,
	}
}

func (w *dayFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.now().Format(logDateLayout)
	if w.file == nil || w.day != today {
		if err := w.open(today); err != nil {
			return 0, err
		}
		w.prune(today)
	}
	return w.file.Write(p)
}

func (w *dayFileWriter) open(day string) error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.name, day))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.file = file
	w.day = day
	return nil
}

// prune removes this writer's files whose date is retainDays or more before today
func (w *dayFileWriter) prune(today string) {
	if w.retainDays <= 0 {
		return
	}
	current, err := time.ParseInLocation(logDateLayout, today, time.Local)
	if err != nil {
		return
	}
	cutoff := current.AddDate(0, 0, -w.retainDays)

	matches, _ := filepath.Glob(filepath.Join(w.dir, w.name+"-*.log"))
	for _, match := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), w.name+"-"), ".log")
		day, err := time.ParseInLocation(logDateLayout, stamp, time.Local)
		if err != nil || day.After(cutoff) {
			continue
		}
		os.Remove(match)
	}
}

func (w *dayFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// ParseLogLevel maps a configured level name to a slog level; unknown names mean info.
func ParseLogLevel(logLevel LogLevel) slog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(logLevel)))) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CreateLogger returns a JSON logger writing to the console and, when a directory is set, to
// daily log files. If the directory cannot be created it logs to the console only.
func CreateLogger(opts LoggerOptions) Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLogLevel(opts.Level)}

	if opts.Dir == "" {
		return slog.New(slog.NewJSONHandler(console, handlerOpts))
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		logger := slog.New(slog.NewJSONHandler(console, handlerOpts))
		logger.Warn("Log directory unavailable, logging to console only", "dir", opts.Dir, "error", err)
		return logger
	}

	name := opts.Name
	if name == "" {
		name = "mocap"
	}
	files := newDayFileWriter(opts.Dir, name, opts.RetainDays)
	return slog.New(slog.NewJSONHandler(io.MultiWriter(console, files), handlerOpts))
}

type nopLogger struct{}

// NopLogger discards everything. Constructors substitute it for a nil Logger.
var NopLogger Logger = nopLogger{}

func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}
func (nopLogger) Debug(msg string, args ...any) {}
