package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Dir is where the JSON log files are written. The admin dashboard reads them back.
const Dir = "logs"

// New builds the application logger: text to stdout, every record as JSON in
// logs/info.log and errors additionally in logs/error.log.
func New(level string) (*slog.Logger, error) {
	return NewInDir(level, Dir)
}

// NewInDir is New with a custom log directory.
func NewInDir(level, dir string) (*slog.Logger, error) {
	handlerLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	errorFile, err := openAppend(filepath.Join(dir, "error.log"))
	if err != nil {
		return nil, err
	}
	infoFile, err := openAppend(filepath.Join(dir, "info.log"))
	if err != nil {
		errorFile.Close()
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: handlerLevel}
	handler := NewMultiLevelHandler(
		handlerLevel,
		slog.NewTextHandler(os.Stdout, opts),
		slog.NewJSONHandler(infoFile, opts),
		slog.NewJSONHandler(errorFile, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	return slog.New(handler), nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// MultiLevelHandler fans records out to the console and the log files.
type MultiLevelHandler struct {
	consoleHandler   slog.Handler
	infoFileHandler  slog.Handler
	errorFileHandler slog.Handler
	level            slog.Leveler
}

// NewMultiLevelHandler creates a handler that accepts records at or above level.
func NewMultiLevelHandler(level slog.Leveler, consoleHandler, infoFileHandler, errorFileHandler slog.Handler) *MultiLevelHandler {
	return &MultiLevelHandler{
		consoleHandler:   consoleHandler,
		infoFileHandler:  infoFileHandler,
		errorFileHandler: errorFileHandler,
		level:            level,
	}
}

func (h *MultiLevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *MultiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	errs := []error{
		h.consoleHandler.Handle(ctx, r.Clone()),
		h.infoFileHandler.Handle(ctx, r.Clone()),
	}
	if r.Level >= slog.LevelError {
		errs = append(errs, h.errorFileHandler.Handle(ctx, r))
	}
	return errors.Join(errs...)
}

func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MultiLevelHandler{
		consoleHandler:   h.consoleHandler.WithAttrs(attrs),
		infoFileHandler:  h.infoFileHandler.WithAttrs(attrs),
		errorFileHandler: h.errorFileHandler.WithAttrs(attrs),
		level:            h.level,
	}
}

func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	return &MultiLevelHandler{
		consoleHandler:   h.consoleHandler.WithGroup(name),
		infoFileHandler:  h.infoFileHandler.WithGroup(name),
		errorFileHandler: h.errorFileHandler.WithGroup(name),
		level:            h.level,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}
