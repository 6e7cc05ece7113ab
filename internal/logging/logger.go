package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// SyslogIdentifier tags journal entries.
var SyslogIdentifier = "camsnap"

// Logger is satisfied by *slog.Logger. Packages that only log take this
// instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the logging configuration. Modules maps a module name to its
// level; modules not listed follow Level.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// registry owns every module logger and the shared sinks.
type registry struct {
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	global      slog.LevelVar
	modules     map[string]moduleLogger
	buffer      *RingBuffer
	callback    LogCallback
	stdout      io.Writer
}

var std = newRegistry()

func newRegistry() *registry {
	return &registry{modules: map[string]moduleLogger{}, stdout: os.Stdout}
}

// Initialize configures levels and outputs. Loggers handed out earlier
// are rebuilt so they pick up the format and the ring buffer.
func Initialize(cfg Config) {
	std.initialize(cfg)
}

func (r *registry) initialize(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg = cfg
	r.initialized = true
	r.buffer = NewRingBuffer(defaultBufferSize)
	r.global.Set(parseLevelOr(cfg.Level, slog.LevelInfo))

	for name, m := range r.modules {
		m.level.Set(r.levelForLocked(name))
		m.logger = slog.New(r.handlerLocked(m.level)).With("module", name)
		r.modules[name] = m
	}
	slog.SetDefault(slog.New(r.handlerLocked(&r.global)))
}

// GetBuffer returns the ring buffer behind /api/logs, or nil before
// Initialize.
func GetBuffer() *RingBuffer {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.buffer
}

// SetLogCallback registers fn to receive every buffered entry. Pass nil
// to remove it.
func SetLogCallback(fn LogCallback) {
	std.mu.Lock()
	std.callback = fn
	std.mu.Unlock()
}

// GetLogger returns the logger for module, creating it on first use.
// Every record it emits carries a "module" attribute.
func GetLogger(module string) *slog.Logger {
	return std.get(module)
}

func (r *registry) get(module string) *slog.Logger {
	r.mu.RLock()
	m, ok := r.modules[module]
	r.mu.RUnlock()
	if ok {
		return m.logger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[module]; ok {
		return m.logger
	}
	level := &slog.LevelVar{}
	level.Set(r.levelForLocked(module))
	m = moduleLogger{logger: slog.New(r.handlerLocked(level)).With("module", module), level: level}
	r.modules[module] = m
	return m.logger
}

// SetModuleLevel changes a module's level at runtime; an empty module
// changes the global level and every module without its own override.
// It reports false when level is not a known level name.
func SetModuleLevel(module, level string) bool {
	parsed, ok := parseLevel(level)
	if !ok {
		return false
	}
	std.setLevel(module, level, parsed)
	return true
}

func (r *registry) setLevel(module, name string, level slog.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if module == "" {
		r.cfg.Level = name
		r.global.Set(level)
		for mod, m := range r.modules {
			if _, pinned := r.cfg.Modules[mod]; !pinned {
				m.level.Set(level)
			}
		}
		return
	}

	if r.cfg.Modules == nil {
		r.cfg.Modules = map[string]string{}
	}
	r.cfg.Modules[module] = name
	if m, ok := r.modules[module]; ok {
		m.level.Set(level)
	}
}

func (r *registry) sinks() (*RingBuffer, LogCallback) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffer, r.callback
}

func (r *registry) levelForLocked(module string) slog.Level {
	if !r.initialized {
		return slog.LevelInfo
	}
	if l, ok := parseLevel(r.cfg.Modules[module]); ok {
		return l
	}
	return parseLevelOr(r.cfg.Level, slog.LevelInfo)
}

// handlerLocked builds the output chain: stdout (text or json) when it is
// connected to something, the journal when journald runs, and always the
// ring buffer.
func (r *registry) handlerLocked(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var console slog.Handler = slog.NewTextHandler(r.stdout, opts)
	if r.initialized && r.cfg.Format == "json" {
		console = slog.NewJSONHandler(r.stdout, opts)
	}

	var handlers []slog.Handler
	if r.stdout != os.Stdout || isStdoutAvailable() {
		handlers = append(handlers, console)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(r, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable reports whether stdout can be written to at all.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode.IsRegular() || mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

// parseLevel accepts slog level names in any case plus "warning".
func parseLevel(s string) (slog.Level, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, true
	}
	if s == "" {
		return 0, false
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, false
	}
	return l, true
}

func parseLevelOr(s string, fallback slog.Level) slog.Level {
	if l, ok := parseLevel(s); ok {
		return l
	}
	return fallback
}
