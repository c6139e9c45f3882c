package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"maitred/internal/config"
)

var (
	MainLogger   zerolog.Logger
	AccessLogger zerolog.Logger
)

// Setup initializes the logging system based on the configuration. With file
// logging disabled everything goes to the console writer on stderr; otherwise
// the main and access loggers each get a rotated file in addition to the
// console.
func Setup(cfg *config.Config) error {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("invalid_level", cfg.Logging.Level).Msg("Invalid log level, using info")
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if !cfg.Logging.Enabled {
		log.Logger = log.Output(consoleWriter)
		MainLogger = log.Logger
		AccessLogger = log.Logger
		return nil
	}

	if err := os.MkdirAll(cfg.Logging.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	mainFileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Logging.Dir, cfg.Logging.MainLogFile),
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}

	accessFileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Logging.Dir, cfg.Logging.AccessLogFile),
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}

	MainLogger = zerolog.New(io.MultiWriter(consoleWriter, mainFileWriter)).With().Timestamp().Logger()
	AccessLogger = zerolog.New(io.MultiWriter(consoleWriter, accessFileWriter)).With().Timestamp().Logger()

	log.Logger = MainLogger

	log.Info().
		Str("dir", cfg.Logging.Dir).
		Str("level", level.String()).
		Msg("File logging initialized")

	return nil
}
