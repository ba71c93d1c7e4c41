// Package logging создает slog логгер из конфигурации
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config параметры логгера
type Config struct {
	// Level debug, info, warn или error
	Level string
	// Format json или text
	Format string
	// Output stdout, stderr или путь к файлу
	Output string
}

// ParseLevel разбирает уровень логирования, пустая строка означает info
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("неизвестный уровень логирования: %q", level)
}

// Validate проверяет уровень и формат
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "json", "text", "":
		return nil
	}
	return fmt.Errorf("формат логов должен быть json или text: %q", c.Format)
}

// New создает логгер, пишущий в w
func New(cfg Config, w io.Writer) (*slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

// Open открывает вывод cfg.Output. Возвращаемая функция закрывает
// файл, для stdout и stderr она ничего не делает.
func Open(cfg Config) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	var w io.Writer
	closeFn := noop
	switch cfg.Output {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("ошибка открытия файла логов %s: %w", cfg.Output, err)
		}
		w, closeFn = f, f.Close
	}

	logger, err := New(cfg, w)
	if err != nil {
		_ = closeFn()
		return nil, noop, err
	}
	return logger, closeFn, nil
}
