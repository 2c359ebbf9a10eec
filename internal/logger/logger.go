package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Packages derive component loggers from it.
var Log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Log = New(os.Stdout, "console", zerolog.InfoLevel)
}

func New(out io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Setup replaces Log according to LOG_LEVEL and LOG_FORMAT style settings.
func Setup(levelStr string, format string) {
	SetupWriter(os.Stdout, levelStr, format)
}

// SetupWriter is Setup with an explicit destination; command line tools send
// logs to stderr so stdout stays clean.
func SetupWriter(out io.Writer, levelStr string, format string) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	Log = New(out, format, level)
	if err != nil {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
	}
}

func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
