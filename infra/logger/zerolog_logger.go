package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

var (
	defaultsMu     sync.RWMutex
	defaultLevel   string
	defaultConsole bool
)

// SetDefaults sets the level and output format used by loggers created
// afterwards. LOG_LEVEL and APP_ENV still take precedence.
func SetDefaults(level string, console bool) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaultLevel = level
	defaultConsole = console
}

// NewZerologLogger writes to stdout and, after SetFile, to the rotating
// file as JSON lines. APP_ENV=dev switches to the console
// writer; LOG_LEVEL selects the minimum level (default info).
func NewZerologLogger(component string) Logger {
	defaultsMu.RLock()
	level, console, file := defaultLevel, defaultConsole, fileOut
	defaultsMu.RUnlock()
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	var w io.Writer = os.Stdout
	if console || strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if file != nil {
		w = zerolog.MultiLevelWriter(w, file)
	}
	return NewWithWriter(component, w, level)
}

// NewWithWriter builds a logger writing JSON lines to w. An empty or unknown
// level falls back to info.
func NewWithWriter(component string, w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
