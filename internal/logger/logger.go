package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Setup builds the process logger on stderr. stdout belongs to the exam
// screen, so nothing is ever logged there.
//   - level: trace, debug, info, warn, error, fatal or panic (info when unknown)
//   - format: "json" for machine-readable lines, "pretty" for the console
func Setup(level, format string) zerolog.Logger {
	return New(os.Stderr, level, format)
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) zerolog.Logger {
	out := w
	if format == "pretty" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(w),
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(out).
		With().
		Timestamp().
		Str("app", "exam-client").
		Caller().
		Logger()
}

// Component tags log lines with the subsystem that wrote them.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
