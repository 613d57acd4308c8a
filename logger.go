package isodist

import (
	"log/slog"

	"github.com/soypat/isodist/internal/logger"
)

// SetLogger sets the logger used by every isodist package. By default
// nothing is logged. Passing nil restores the silent default. Safe for
// concurrent use.
//
//	isodist.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Logger returns the active logger.
func Logger() *slog.Logger {
	return logger.L()
}
