package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger: console output on stderr, UTC
// timestamps and the given level. Unknown levels fall back to info.
func Init(level string) {
	InitWithWriter(level, os.Stderr)
}

// InitWithWriter is Init with an explicit destination. Colors are only used
// when out is a file.
func InitWithWriter(level string, out io.Writer) {
	levelStr := strings.ToLower(strings.TrimSpace(level))
	lvl, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		if levelStr != "" {
			fmt.Fprintf(os.Stderr, "Unknown log level '%s', defaulting to 'info'\n", levelStr)
		}
		lvl = zerolog.InfoLevel
	}

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	_, isFile := out.(*os.File)
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !isFile,
		TimeFormat: "2006-01-02 15:04:05",
	}

	log.Logger = zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	Debug().Str("level", lvl.String()).Msg("logger initialized")
}

// WithComponent 返回带 component 字段的子 logger，用于区分不同模块的输出
func WithComponent(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// Event wraps a zerolog event so callers don't import zerolog directly.
type Event struct {
	*zerolog.Event
}

func Debug() *Event {
	return &Event{log.Debug()}
}

func Info() *Event {
	return &Event{log.Info()}
}

func Warn() *Event {
	return &Event{log.Warn()}
}

func Error() *Event {
	return &Event{log.Error()}
}

func (e *Event) Str(key, value string) *Event {
	e.Event = e.Event.Str(key, value)
	return e
}

func (e *Event) Int(key string, value int) *Event {
	e.Event = e.Event.Int(key, value)
	return e
}

func (e *Event) Bool(key string, value bool) *Event {
	e.Event = e.Event.Bool(key, value)
	return e
}

func (e *Event) Dur(key string, value time.Duration) *Event {
	e.Event = e.Event.Dur(key, value)
	return e
}

func (e *Event) Err(err error) *Event {
	e.Event = e.Event.Err(err)
	return e
}

// Msgf is less performant than structured fields; prefer Str/Int for data.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Event.Msgf(format, v...)
}
