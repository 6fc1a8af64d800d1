// Package logging builds the process-wide zerolog logger used by every
// component's constructor. Nothing here is a global singleton: main wires
// one *zerolog.Logger through the composition root, same as the teacher
// threads *config.Config and *db.DB explicitly into every poller.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly logger for local runs, or JSON when
// SIT_LOG_FORMAT=json is set (e.g. in production behind a log shipper).
func New(component string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out zerolog.Logger
	if os.Getenv("SIT_LOG_FORMAT") == "json" {
		out = zerolog.New(os.Stdout)
	} else {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	return out.With().Timestamp().Str("component", component).Logger()
}
