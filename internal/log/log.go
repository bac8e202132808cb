package log

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// NewHandler builds a slog handler writing human readable records to
// stderr with the given prefix.
func NewHandler(name string) slog.Handler {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          name,
	})
}

// New creates a named logger.
func New(name string) *slog.Logger {
	return slog.New(NewHandler(name))
}
