package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger. Packages
// that only emit logs can depend on this instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// registry owns every module logger and the shared log history. Loggers
// are cached by module name and their levels are adjusted in place via
// LevelVar, so a logger handed out before Initialize keeps working and
// picks up the configured level afterwards.
type registry struct {
	mu       sync.RWMutex
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	config   Config
	ready    bool
	buffer   *RingBuffer
	callback LogCallback
}

var reg = &registry{
	loggers: make(map[string]*slog.Logger),
	levels:  make(map[string]*slog.LevelVar),
}

// initialize applies the configuration: it creates the history buffer,
// retunes every existing module logger, and installs the default slog
// logger. Safe to call again, for example from tests.
func (g *registry) initialize(config Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.config = config
	g.ready = true
	g.buffer = NewRingBuffer(defaultBufferSize)

	global := slog.LevelInfo
	if lvl, ok := parseLevel(config.Level); ok {
		global = lvl
	}

	for module, levelVar := range g.levels {
		levelVar.Set(g.moduleLevelLocked(module, global))
	}

	rootVar := &slog.LevelVar{}
	rootVar.Set(global)
	slog.SetDefault(slog.New(createHandler(config.Format, rootVar)))
}

// moduleLevelLocked resolves the level for a module, preferring the
// per-module override over the global default.
func (g *registry) moduleLevelLocked(module string, global slog.Level) slog.Level {
	if levelStr, ok := g.config.Modules[module]; ok {
		if lvl, ok := parseLevel(levelStr); ok {
			return lvl
		}
	}
	return global
}

func (g *registry) logger(module string) *slog.Logger {
	g.mu.RLock()
	if logger, ok := g.loggers[module]; ok {
		g.mu.RUnlock()
		return logger
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if logger, ok := g.loggers[module]; ok {
		return logger
	}

	level := slog.LevelInfo
	format := "text"
	if g.ready {
		if lvl, ok := parseLevel(g.config.Level); ok {
			level = lvl
		}
		level = g.moduleLevelLocked(module, level)
		format = g.config.Format
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level)

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	g.loggers[module] = logger
	g.levels[module] = levelVar
	return logger
}

// Initialize sets up the logging system from the given configuration.
func Initialize(config Config) {
	reg.initialize(config)
}

// GetLogger returns the logger for a module, creating it on first use.
// Loggers are cached, so repeated calls return the same instance.
func GetLogger(module string) *slog.Logger {
	return reg.logger(module)
}

// GetBuffer returns the ring buffer holding recent log history, or nil
// before Initialize has run.
func GetBuffer() *RingBuffer {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer
}

// SetLogCallback registers a callback invoked for every new log entry.
// The event stream uses it to push live logs to subscribers.
func SetLogCallback(callback LogCallback) {
	reg.mu.Lock()
	reg.callback = callback
	reg.mu.Unlock()
}

// currentSink returns the live buffer and callback for BufferHandler.
func currentSink() (*RingBuffer, LogCallback) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer, reg.callback
}

// createHandler builds the handler chain for one logger: stdout when
// connected, the systemd journal when available, and always the history
// buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable reports whether stdout is wired to a terminal, pipe,
// socket, or regular file rather than /dev/null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a level name to an slog.Level.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
