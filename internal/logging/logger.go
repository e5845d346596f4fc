// Package logging provides the zerolog-backed structured logger used by
// queues, the reactor and the command line tools
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger. Scoped loggers derived with WithQueue,
// WithRequest and WithError share the parent's output.
type Logger struct {
	zlog zerolog.Logger
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel is a zerolog level
type LogLevel int

const (
	LevelDebug LogLevel = LogLevel(zerolog.DebugLevel)
	LevelInfo  LogLevel = LogLevel(zerolog.InfoLevel)
	LevelWarn  LogLevel = LogLevel(zerolog.WarnLevel)
	LevelError LogLevel = LogLevel(zerolog.ErrorLevel)
)

// Config holds logging configuration
type Config struct {
	Level   LogLevel
	Format  string // "json" or "text"
	Output  io.Writer
	Sync    bool // write on the caller's goroutine instead of through a buffered channel
	NoColor bool
}

// DefaultConfig logs info and above as text to stderr
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// queuedWriter hands log lines to a background goroutine so a completion
// callback never blocks on stderr. Lines are dropped when the backlog is full.
type queuedWriter struct {
	out   io.Writer
	lines chan []byte
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func newQueuedWriter(w io.Writer, backlog int) *queuedWriter {
	qw := &queuedWriter{
		out:   w,
		lines: make(chan []byte, backlog),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(qw.done)
		for line := range qw.lines {
			_, _ = qw.out.Write(line)
		}
	}()
	return qw
}

func (qw *queuedWriter) Write(p []byte) (int, error) {
	qw.mu.Lock()
	defer qw.mu.Unlock()
	if qw.closed {
		return 0, io.ErrClosedPipe
	}

	// zerolog reuses p after Write returns
	line := append([]byte(nil), p...)
	select {
	case qw.lines <- line:
	default:
	}
	return len(p), nil
}

func (qw *queuedWriter) Close() error {
	qw.mu.Lock()
	if !qw.closed {
		qw.closed = true
		close(qw.lines)
	}
	qw.mu.Unlock()
	<-qw.done
	return nil
}

// NewLogger creates a logger from config, or from DefaultConfig when nil
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	out := config.Output
	if !config.Sync {
		out = newQueuedWriter(out, 1000)
	}
	if config.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: config.NoColor}
	}

	zlog := zerolog.New(out).With().Timestamp().Logger().Level(zerolog.Level(config.Level))
	return &Logger{zlog: zlog}
}

// Default returns the process-wide logger, creating it on first use
func Default() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger. Passing nil restores the
// lazily created default.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithQueue scopes the logger to a queue, identified by its eventfd
func (l *Logger) WithQueue(queueID int) *Logger {
	return &Logger{zlog: l.zlog.With().Int("queue", queueID).Logger()}
}

// WithRequest scopes the logger to one in-flight request
func (l *Logger) WithRequest(tag uint64, op string) *Logger {
	return &Logger{zlog: l.zlog.With().Uint64("tag", tag).Str("op", op).Logger()}
}

// WithError attaches err to every message
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	return l.zlog.GetLevel() <= zerolog.Level(level)
}

// IOComplete logs a finished read at debug level
func (l *Logger) IOComplete(offset int64, length int, result int64, latency time.Duration) {
	l.zlog.Debug().
		Int64("offset", offset).
		Int("length", length).
		Int64("result", result).
		Int64("latency_us", latency.Microseconds()).
		Msg("read completed")
}

// IOError logs a read the kernel failed at debug level
func (l *Logger) IOError(offset int64, length int, err error) {
	l.zlog.Debug().Err(err).Int64("offset", offset).Int("length", length).Msg("read failed")
}

func (l *Logger) Debug(msg string, args ...any) { emit(l.zlog.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { emit(l.zlog.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { emit(l.zlog.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { emit(l.zlog.Error(), msg, args) }

// emit writes alternating key/value args as fields. A trailing key without a
// value is dropped.
func emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, isErr := args[i+1].(error); isErr {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}
