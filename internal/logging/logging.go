// Package logging builds the run-scoped logger: a terse console stream plus
// a persistent, always-verbose log file.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

const logFileName = "replay.log"

// New returns a logger fanning out to stdout and to {dir}/replay.log. The
// file handler always records at DEBUG; the console handler records at INFO
// unless debug is set. The returned close func flushes and closes the file.
func New(debug bool, dir string) (*slog.Logger, func() error, error) {
	consoleLevel := slog.LevelInfo
	if debug {
		consoleLevel = slog.LevelDebug
	}
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel})

	path := logFileName
	if dir != "" {
		path = filepath.Join(dir, logFileName)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(slogmulti.Fanout(console, fileHandler))
	return logger, file.Close, nil
}
