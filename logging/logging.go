package logging

import (
	"log/slog"
	"os"
)

// Init installs a JSON slog handler as the default logger.
func Init() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
