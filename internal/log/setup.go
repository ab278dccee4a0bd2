// Package log configures the process-wide zerolog logger: a
// human-readable console writer on an interactive TTY, structured JSON
// otherwise (container/systemd capture, log aggregation).
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Setup installs the global zerolog logger at levelName ("debug",
// "info", "warn", "error"; defaults to "info" on an unrecognised
// value) and chooses console vs. JSON output based on whether stderr
// is attached to a terminal.
func Setup(levelName string) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
