// Package log bootstraps the process-wide zerolog logger: RFC3339
// timestamps, a console writer in interactive mode, JSON lines otherwise.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Bootstrap configures the global zerolog logger. pretty selects the
// human-readable console writer (used by `sentinel snapshot` and local
// development); false emits structured JSON lines, the mode `sentinel
// serve` runs in under a process supervisor.
func Bootstrap(pretty bool, level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
