// Package logging implements delibot's process-wide logging facility: a
// console sink plus a daily-rotating file sink behind a single named root,
// configured exactly once per process and reusable from any call site.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Namespace is the prefix carried by every logger handle the facility hands out.
const Namespace = "delibot"

// FileName is the active log file inside the facility's log directory.
const FileName = "delibot.log"

// backupCount bounds how many rotated log files are retained.
const backupCount = 7

// Options configures a Facility. The zero value is usable: logs go to a
// "logs" directory and stdout, at INFO.
type Options struct {
	// Dir is the log directory. Empty means "logs".
	Dir string
	// Level is the fallback severity name when LOG_LEVEL is unset or
	// unrecognized. Recognized names: CRITICAL, ERROR, WARNING, INFO,
	// DEBUG, NOTSET. Anything else means INFO.
	Level string
	// Console is the console sink destination. Nil means os.Stdout.
	Console io.Writer
}

// Facility is the process-wide logging root. Construct one with New, thread
// it to the components that need log handles, and obtain handles via Logger.
// All methods are safe for concurrent use; sinks are attached at most once
// no matter how many call sites race on first use.
type Facility struct {
	mu         sync.Mutex
	configured bool
	opts       Options
	level      *slog.LevelVar
	sinks      []slog.Handler
	root       *slog.Logger
	rotator    *lumberjack.Logger
}

// New returns an unconfigured Facility. Sinks are attached lazily by the
// first Setup or Logger call.
func New(opts Options) *Facility {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	return &Facility{
		opts:  opts,
		level: new(slog.LevelVar),
	}
}

// Setup configures the facility. The first call resolves the severity
// threshold (LOG_LEVEL beats Options.Level), creates the log directory, and
// attaches the console and rotating-file sinks. Every later call only
// re-resolves and re-applies the threshold, so a changed LOG_LEVEL takes
// effect process-wide without duplicating sinks.
func (f *Facility) Setup() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.level.Set(resolveLevel(os.Getenv("LOG_LEVEL"), f.opts.Level))
	if f.configured {
		return nil
	}

	if err := os.MkdirAll(f.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}

	// The rotator opens the file on the first write, not here. It rotates
	// on explicit Rotate calls from the midnight timer; MaxBackups prunes
	// old files.
	f.rotator = &lumberjack.Logger{
		Filename:   filepath.Join(f.opts.Dir, FileName),
		MaxBackups: backupCount,
		LocalTime:  true,
	}

	f.sinks = []slog.Handler{
		slog.NewTextHandler(f.opts.Console, &slog.HandlerOptions{Level: f.level}),
		slog.NewJSONHandler(f.rotator, &slog.HandlerOptions{Level: f.level}),
	}
	f.root = slog.New(fanout(f.sinks))
	f.configured = true

	go f.rotateAtMidnight()

	return nil
}

// Logger returns a handle named Qualify(name) on the facility's sinks. The
// first call configures the facility; if that fails the handle falls back to
// slog.Default so records are not lost (main is expected to have surfaced
// the Setup error already).
func (f *Facility) Logger(name string) *slog.Logger {
	if err := f.Setup(); err != nil {
		return slog.Default().With(slog.String("logger", Qualify(name)))
	}

	f.mu.Lock()
	root := f.root
	f.mu.Unlock()

	return root.With(slog.String("logger", Qualify(name)))
}

// Qualify returns name prefixed with the delibot namespace. Prefixing is
// idempotent; an empty name maps to the namespace itself.
func Qualify(name string) string {
	if name == "" || name == Namespace {
		return Namespace
	}
	if strings.HasPrefix(name, Namespace+".") {
		return name
	}
	return Namespace + "." + name
}

// rotateAtMidnight rotates the file sink at each local midnight so one file
// covers at most one calendar day. The facility is a process-lifetime
// singleton, so the loop has no stop condition.
func (f *Facility) rotateAtMidnight() {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		time.Sleep(time.Until(next))
		if err := f.rotator.Rotate(); err != nil {
			f.root.Warn("log rotation failed", "error", err)
		}
	}
}

// resolveLevel picks the effective threshold: the environment value wins,
// then the configured fallback, then INFO.
func resolveLevel(env, fallback string) slog.Level {
	if lvl, ok := parseLevel(env); ok {
		return lvl
	}
	if lvl, ok := parseLevel(fallback); ok {
		return lvl
	}
	return slog.LevelInfo
}

// parseLevel maps a severity name onto a slog level. CRITICAL sits above
// ERROR at slog's conventional +4 spacing; NOTSET sits below DEBUG and
// admits every record.
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return slog.LevelError + 4, true
	case "ERROR":
		return slog.LevelError, true
	case "WARNING", "WARN":
		return slog.LevelWarn, true
	case "INFO":
		return slog.LevelInfo, true
	case "DEBUG":
		return slog.LevelDebug, true
	case "NOTSET":
		return slog.LevelDebug - 4, true
	}
	return 0, false
}

// multiHandler fans a record out to every attached sink. Records never
// propagate to slog's default handler; the facility's sinks are the only
// destinations.
type multiHandler struct {
	hs []slog.Handler
}

func fanout(hs []slog.Handler) slog.Handler {
	return &multiHandler{hs: hs}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		hs[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{hs: hs}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		hs[i] = h.WithGroup(name)
	}
	return &multiHandler{hs: hs}
}
